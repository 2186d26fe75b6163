package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope"
	"github.com/codescope/codescope/infrastructure/pipeline"
)

func diagnoseCmd() *cobra.Command {
	var flags commonFlags
	var repair bool

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Cross-check disk, metadata and vector stores",
		Long: `Compare the unit files on disk against the metadata and vector stores
and report missing units and orphan vectors. With --repair, orphans are
deleted and missing units re-stored before re-diagnosing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(flags, repair)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&repair, "repair", false, "Fix what the diagnosis finds")
	return cmd
}

func runDiagnose(flags commonFlags, repair bool) error {
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

	vectors, metadata, _ := client.Stores()
	reporter := pipeline.NewStatusReporter(cfg.IndexDir(), vectors, metadata)

	var diagnosis pipeline.Diagnosis
	if repair {
		diagnosis, err = reporter.Repair(ctx)
	} else {
		diagnosis, err = reporter.Diagnose(ctx)
	}
	if err != nil {
		return runtimeErr(err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diagnosis); err != nil {
		return runtimeErr(err)
	}
	if !diagnosis.Healthy {
		return runtimeErr(fmt.Errorf("index is unhealthy: %d problems", len(diagnosis.Problems)))
	}
	return nil
}
