package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope"
	"github.com/codescope/codescope/infrastructure/console"
	"github.com/codescope/codescope/infrastructure/toolserver"
)

func consoleCmd() *cobra.Command {
	var flags commonFlags
	var (
		bridge  string
		confirm string
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Serve the live-data console on stdin/stdout",
		Long: `Serve the live-data console tools on stdin/stdout.

Embedded mode connects directly to the application database named by
APP_DB_URL and serves the basic data tools; everything heavier returns
an unsupported error. With --bridge, every tool is forwarded to the
named bridge process running inside the application instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(flags, bridge, confirm)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&bridge, "bridge", "", "Command to spawn as the console bridge (forwards all tools)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Confirmation mode override: auto_approve, auto_deny")

	return cmd
}

func runConsole(flags commonFlags, bridge, confirm string) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	opts := []codescope.Option{codescope.WithConfig(cfg)}
	if confirm != "" {
		opts = append(opts, codescope.WithConfirmation(console.NewConfirmation(console.ConfirmationMode(confirm))))
	}

	client, err := codescope.New(opts...)
	if err != nil {
		return runtimeErr(err)
	}
	defer client.Close()
	logger := client.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var registry *toolserver.Registry
	if bridge != "" {
		parts := strings.Fields(bridge)
		proc := exec.CommandContext(ctx, parts[0], parts[1:]...)
		proc.Stderr = os.Stderr
		stdin, err := proc.StdinPipe()
		if err != nil {
			return runtimeErr(err)
		}
		stdout, err := proc.StdoutPipe()
		if err != nil {
			return runtimeErr(err)
		}
		if err := proc.Start(); err != nil {
			return runtimeErr(fmt.Errorf("start bridge: %w", err))
		}
		defer proc.Wait()

		registry = client.ConsoleBridge(console.NewBridgeAdapter(stdout, stdin))
		logger.Info("console bridged", "command", parts[0])
	} else {
		registry, err = client.Console(ctx)
		if err != nil {
			return configErr(err)
		}
		logger.Info("console embedded", "app_db", cfg.AppDBURL() != "")
	}

	server := toolserver.NewStdioServer(registry, os.Stdin, os.Stdout, logger)
	if err := server.Serve(ctx); err != nil {
		return runtimeErr(err)
	}
	return nil
}
