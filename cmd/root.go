package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/transfa/fundtransfer-service/internal/config"
	"github.com/transfa/fundtransfer-service/pkg/logger"
	"go.uber.org/zap"
)

var configDir string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fundtransfer",
	Short: "Fund transfer service",
	Long: `fundtransfer moves funds between account holders with row-level locking
and an append-only audit trail of every transfer attempt.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing the optional .env file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// bootstrap loads the environment, configuration and logger shared by every subcommand.
func bootstrap() (config.Config, *zap.Logger, error) {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("level=warn component=bootstrap msg=\".env file could not be loaded\" err=%v", err)
	}

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, appLogger, nil
}
