package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/transfa/fundtransfer-service/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, appLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer appLogger.Sync()

		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be configured")
		}
		return store.RunMigrations(cfg.DatabaseURL, appLogger)
	},
}
