package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/database"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the account database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			if cfg.Database.Driver == database.DriverSQLite && cfg.Database.Path != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
					return fmt.Errorf("failed to create database dir: %w", err)
				}
			}

			db, err := database.New(cfg.Database.ToDBConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			timeout := cfg.Database.MigrationTimeout
			if timeout <= 0 {
				timeout = time.Minute
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			applied, err := database.NewMigrator(db).Run(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, err := db.GetVersion(ctx)
			if err != nil {
				version = "unknown"
			}
			logger.Infof("%d migrations applied (%s %s)", applied, db.Driver(), version)
			return nil
		},
	}
}
