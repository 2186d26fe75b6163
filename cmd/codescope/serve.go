package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope"
)

func serveCmd() *cobra.Command {
	var flags commonFlags
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tool server",
		Long: `Start the HTTP tool server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  CODESCOPE_HOST               Server host to bind to (default: 0.0.0.0)
  CODESCOPE_PORT               Server port to listen on (default: 8080)
  CODESCOPE_INDEX_DIR          Index directory (default: ~/.codescope/index)
  CODESCOPE_DB_URL             Index database URL (default: sqlite://{index_dir}/codescope.db)
  CODESCOPE_LOG_LEVEL          Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  CODESCOPE_LOG_FORMAT         Log format: text, json (default: text)
  CODESCOPE_FORMAT             Context output format: markdown, claude, plain, json
  CODESCOPE_TOKEN_BUDGET       Default context token budget (default: 8000)
  OPENAI_API_KEY               Embedding provider API key (hash fallback without it)
  CODESCOPE_EMBEDDING_MODEL    Embedding model (default: text-embedding-3-small)
  APP_DB_URL                   Live application database URL for the console
  REDIS_URL                    Application Redis URL for console introspection`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags, host, port)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(flags commonFlags, host string, port int) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	cfg = cfg.WithAddr(host, port)

	client, err := codescope.New(codescope.WithConfig(cfg))
	if err != nil {
		return runtimeErr(err)
	}
	defer client.Close()

	logger := client.Logger()
	server := client.HTTPServer()
	logger.Info("starting HTTP server", "addr", cfg.Addr(), "version", version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return runtimeErr(err)
		}
		return nil
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return runtimeErr(err)
		}
		return nil
	}
}
