package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/antgroup/datacrew/config"
)

const version = "0.1.0"

// cli holds what the root command resolved before a subcommand runs.
type cli struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "datacrew",
		Short:         "Ask questions about the public administration datasets and get a report with a chart.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("process", "", `crew process, "sequential" or "hierarchical"`)
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", `log format, "text" or "json"`)
	flags.String("plots-dir", "", "directory for saved charts")
	flags.String("history", "", "sqlite DSN for the run history")
	bind(c.v, flags.Lookup("process"), config.Process)
	bind(c.v, flags.Lookup("log-level"), config.LogLevel)
	bind(c.v, flags.Lookup("log-format"), config.LogFormat)
	bind(c.v, flags.Lookup("plots-dir"), config.PlotsDir)
	bind(c.v, flags.Lookup("history"), config.HistoryDSN)

	root.AddCommand(newAskCmd(c), newServeCmd(c), newMCPCmd(c), newRunsCmd(c))
	return root
}

func (c *cli) load() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	}
	var envFiles []string
	if c.envFile != "" {
		envFiles = append(envFiles, c.envFile)
	}
	cfg, err := config.Load(c.v, envFiles...)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = cfg.Logger(os.Stderr)
	slog.SetDefault(c.logger)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
