package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope"
	"github.com/codescope/codescope/infrastructure/pipeline"
)

func reindexCmd() *cobra.Command {
	var flags commonFlags
	var workers int

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Run the incremental indexer",
		Long: `Embed added and modified units and delete vectors for removed ones,
following the change manifest. Without a change manifest, everything is
re-embedded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(flags, workers)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent embedding workers (default: 4)")
	return cmd
}

func runReindex(flags commonFlags, workers int) error {
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

	vectors, metadata, graph := client.Stores()
	opts := []pipeline.IndexerOption{pipeline.WithIndexerLogger(client.Logger())}
	if workers > 0 {
		opts = append(opts, pipeline.WithWorkers(workers))
	}
	indexer := pipeline.NewIncrementalIndexer(client.Embedder(), vectors, metadata, graph, opts...)

	result, err := indexer.Run(ctx, cfg.IndexDir())
	if err != nil {
		return runtimeErr(err)
	}
	fmt.Printf("reindex complete: %d embedded, %d deleted, %d skipped\n",
		result.Embedded, result.Deleted, result.Skipped)
	return nil
}
