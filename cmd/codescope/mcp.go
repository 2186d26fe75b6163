package main

import (
	"github.com/spf13/cobra"

	"github.com/codescope/codescope"
)

func mcpCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server on stdio.

Exposes every registered tool plus the codebase:// resources so MCP
clients can browse the manifest, the dependency graph, and individual
units.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runMCP(flags commonFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	client, err := codescope.New(codescope.WithConfig(cfg))
	if err != nil {
		return runtimeErr(err)
	}
	defer client.Close()

	client.Logger().Info("starting MCP server", "version", version, "index_dir", cfg.IndexDir())
	if err := client.MCP().ServeStdio(); err != nil {
		return runtimeErr(err)
	}
	return nil
}
