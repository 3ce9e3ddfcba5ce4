package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/antgroup/datacrew/config"
	"github.com/antgroup/datacrew/server"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []server.Option{
				server.WithMetrics(a.recorder.Handler()),
				server.WithLogger(a.logger),
			}
			if a.store != nil {
				opts = append(opts, server.WithHistory(a.store))
			}
			srv := server.New(a.crew, opts...)

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(c.cfg.HTTPAddr) }()
			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				a.logger.Info("shutting down http server")
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	bind(c.v, cmd.Flags().Lookup("addr"), config.HTTPAddr)
	return cmd
}
