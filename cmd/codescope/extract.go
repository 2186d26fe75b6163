package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/pipeline"
)

func extractCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Recompute the change manifest from the index directory",
		Long: `Diff the unit files in the index directory against the hashes of the
previous run and write a fresh change manifest. The extractor that produces
the unit files runs inside the application; this command only re-derives
what changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runExtract(flags commonFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	indexDir := cfg.IndexDir()

	units, err := pipeline.LoadUnits(indexDir)
	if err != nil {
		return runtimeErr(fmt.Errorf("load units: %w", err))
	}

	var previous map[string]string
	var previousSHA string
	if prior, err := unit.ReadChangeManifest(indexDir); err == nil {
		previous = prior.Hashes
		previousSHA = prior.GitSHA
	}
	gitSHA := previousSHA
	if manifest, err := unit.ReadManifest(indexDir); err == nil {
		gitSHA = manifest.GitSHA
	}

	manifest := pipeline.NewInvalidator().Diff(previous, units, gitSHA, previousSHA)
	if err := unit.WriteChangeManifest(indexDir, manifest); err != nil {
		return runtimeErr(err)
	}

	fmt.Printf("change manifest written: %d added, %d modified, %d deleted, %d unchanged\n",
		manifest.Summary.Added, manifest.Summary.Modified,
		manifest.Summary.Deleted, manifest.Summary.Unchanged)
	return nil
}
