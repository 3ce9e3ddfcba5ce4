package main

import (
	"github.com/spf13/cobra"

	"github.com/antgroup/datacrew/tool/executor"
	"github.com/antgroup/datacrew/tool/mcp"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis and plotting tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newTools(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			tools, err := a.tools.GetByNames(executor.AnalysisName, executor.PlottingName)
			if err != nil {
				return err
			}
			return mcp.ServeStdio(mcp.NewServer("datacrew", version, tools...))
		},
	}
}
