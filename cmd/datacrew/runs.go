package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/antgroup/datacrew/config"
	"github.com/antgroup/datacrew/store"
)

func newRunsCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List stored runs, or print the report of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(c.cfg.HistoryDSN)
			if errors.Is(err, store.ErrDisabled) {
				return errors.Wrap(err, "set "+config.HistoryDSN+" or --history")
			}
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, out := cmd.Context(), cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := st.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return run.Report().WriteText(out)
			}
			runs, err := st.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no runs yet"))
				return nil
			}
			fmt.Fprintln(out, runsTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}
