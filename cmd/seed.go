package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/transfa/fundtransfer-service/internal/app"
	"github.com/transfa/fundtransfer-service/internal/store"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create or reset the demo account holders",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, appLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer appLogger.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		dbpool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer dbpool.Close()

		repository := store.NewPostgresRepository(dbpool)
		service := app.NewService(nil, nil, repository, nil, appLogger)
		users, err := service.SeedDemoUsers(ctx)
		if err != nil {
			return err
		}
		appLogger.Info("seeding complete", zap.String("component", "seed"), zap.Int("users", len(users)))
		return nil
	},
}
