package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/mcpserver"
)

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.open()
			if err != nil {
				return err
			}
			defer s.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s.logger.Printf("serving MCP tools (content root: %s)", s.core.Root())
			srv := mcpserver.New(s.core, s.logger)
			return mcpserver.Serve(runCtx, srv, cmd.InOrStdin(), cmd.OutOrStdout(), s.logger)
		},
	}
}
