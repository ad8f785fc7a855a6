// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	acctpg "github.com/driftgate/driftgate/internal/account/postgres"
	"github.com/driftgate/driftgate/internal/config"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending account schema migrations against the PostgreSQL database.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		databaseURL = cfg.Accounts.DatabaseURL
	}
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL or accounts.database_url is required")
	}

	migrator, err := acctpg.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		return oops.Code("MIGRATION_DIRTY").Errorf("schema version %d is dirty, manual intervention required", version)
	}

	cmd.Printf("Migrations completed successfully (version %d)\n", version)
	return nil
}
