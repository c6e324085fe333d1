package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaif/hal/internal/config"
	"github.com/jaif/hal/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger()
	logger.Info("applying migrations", "host", cfg.PostgresHost, "database", cfg.PostgresDBName)

	if err := database.Migrate(cfg.PostgresConnectionString()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
