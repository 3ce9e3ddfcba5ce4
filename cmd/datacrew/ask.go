package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/antgroup/datacrew/utils/json"
)

// app validates the configuration and builds the crew.
func (c *cli) app(ctx context.Context) (*app, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newLLM(c.cfg)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, c.cfg, c.logger, client)
}

func newAskCmd(c *cli) *cobra.Command {
	var (
		htmlPath  string
		xlsxPath  string
		graphPath string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run the crew on one query and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, runErr := a.crew.Kickoff(ctx, strings.Join(args, " "))
			if res == nil || res.Report == nil {
				if runErr == nil {
					runErr = errors.New("run produced no report")
				}
				return runErr
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.Marshal(res)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, json.Pretty(data))
			} else if err := res.Report.WriteText(out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), statusLine(res))

			if htmlPath != "" {
				if err := writeFile(htmlPath, res.Report.WriteHTML); err != nil {
					return err
				}
			}
			if xlsxPath != "" {
				if err := writeFile(xlsxPath, res.Report.WriteXLSX); err != nil {
					return err
				}
			}
			if graphPath != "" {
				xdot, err := a.crew.RenderGraph(ctx, res)
				if err != nil {
					return err
				}
				if err := os.WriteFile(graphPath, []byte(xdot), 0o644); err != nil {
					return errors.Wrap(err, "write graph")
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&htmlPath, "html", "", "also write the report as HTML to this file")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also export the report tables to this workbook")
	cmd.Flags().StringVar(&graphPath, "graph", "", "write the stage graph with final states (xdot) to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run result as JSON instead of the text report")
	return cmd
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
