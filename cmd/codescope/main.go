// Package main is the entry point for the codescope CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitUsage   = 1
	exitConfig  = 2
	exitRuntime = 3
)

// exitError carries a process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }

func configErr(err error) error  { return exitError{code: exitConfig, err: err} }
func runtimeErr(err error) error { return exitError{code: exitRuntime, err: err} }

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitUsage)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "codescope",
		Short:         "Codescope code retrieval server",
		Long:          `Codescope serves classified, ranked, token-budgeted context from an extracted codebase index, over stdio, HTTP, or MCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(mcpCmd())
	cmd.AddCommand(consoleCmd())
	cmd.AddCommand(extractCmd())
	cmd.AddCommand(reindexCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(diagnoseCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// commonFlags are shared by every command that builds a client.
type commonFlags struct {
	envFile   string
	indexDir  string
	logFormat string
	format    string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&f.indexDir, "index-dir", "", "Index directory (default: $CODESCOPE_INDEX_DIR or ~/.codescope/index)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: text, json (default: text)")
	cmd.Flags().StringVar(&f.format, "format", "", "Context output format: markdown, claude, plain, json")
}

// loadConfig loads configuration and applies flag overrides; flags take
// precedence over the environment.
func (f *commonFlags) loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return config.AppConfig{}, configErr(fmt.Errorf("load config: %w", err))
	}
	cfg = cfg.WithIndexDir(f.indexDir).WithLogFormat(f.logFormat).WithFormat(f.format)
	return cfg, nil
}
