package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope"
)

func stdioCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve the tool protocol on stdin/stdout",
		Long: `Serve the framed tool protocol on stdin/stdout.

One JSON request per line in, one JSON response per line out. Logs go to
stderr so stdout stays a clean response stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runStdio(flags commonFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	client, err := codescope.New(codescope.WithConfig(cfg))
	if err != nil {
		return runtimeErr(err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client.Logger().Info("serving on stdio", "version", version, "index_dir", cfg.IndexDir())
	if err := client.ServeStdio(ctx); err != nil {
		return runtimeErr(err)
	}
	return nil
}
