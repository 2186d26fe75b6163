package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/infrastructure/persistence"
	"github.com/codescope/codescope/internal/database"
)

func migrateCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the index database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runMigrate(flags commonFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBURL())
	if err != nil {
		return configErr(fmt.Errorf("open index database: %w", err))
	}
	defer db.Close()

	if err := persistence.Migrate(db); err != nil {
		return runtimeErr(err)
	}
	fmt.Println("migration complete")
	return nil
}
