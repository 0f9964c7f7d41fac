package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/transfa/fundtransfer-service/internal/api"
	"github.com/transfa/fundtransfer-service/internal/app"
	"github.com/transfa/fundtransfer-service/internal/config"
	"github.com/transfa/fundtransfer-service/internal/store"
	rmrabbit "github.com/transfa/fundtransfer-service/pkg/rabbitmq"
	"go.uber.org/zap"
)

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the outbox dispatcher and scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, appLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer appLogger.Sync()
		return serve(cmd.Context(), cfg, appLogger)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "Apply pending migrations before serving")
}

func serve(parent context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be configured")
	}
	logger.Info("starting fund-transfer service", zap.String("component", "bootstrap"), zap.String("port", cfg.ServerPort))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runMigrations {
		if err := store.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	dbpool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	logger.Info("database connected", zap.String("component", "bootstrap"))

	repository := store.NewPostgresRepository(dbpool)
	service := app.NewService(
		store.NewPostgresAccountStore(dbpool, cfg.LockTimeout()),
		store.NewPostgresAuditLog(dbpool, cfg.EventsExchange),
		repository,
		app.UUIDGenerator{},
		logger,
	)

	redisClient := connectRedis(ctx, cfg.RedisURL, logger)
	var locker app.JobLocker
	if redisClient != nil {
		defer redisClient.Close()
		service.SetRateLimiter(
			app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.TransferRateLimitPerMinute,
			cfg.LoginRateLimitPerMinute,
		)
		locker = app.NewRedsyncLocker(redsync.New(goredis.NewPool(redisClient)), cfg.RedisRateLimitPrefix+":jobs")
	}

	if cfg.RabbitMQURL == "" {
		logger.Warn("rabbitmq url missing; transfer events stay in the outbox", zap.String("component", "bootstrap"))
	} else {
		publisher := rmrabbit.NewBreakerPublisher(
			rmrabbit.NewLazyProducer(cfg.RabbitMQURL, logger),
			rmrabbit.BreakerConfig{ConsecutiveFailures: 5, Timeout: 30 * time.Second},
			logger,
		)
		dispatcher := app.NewOutboxDispatcher(repository, publisher, logger, cfg.OutboxPollInterval())
		go dispatcher.Run(ctx)
	}

	jobs := app.NewJobs(repository, repository, locker, logger, cfg.OutboxRetention())
	scheduler := app.NewScheduler(jobs, logger, app.ScheduleConfig{
		OutboxPurge:     cfg.OutboxPurgeSchedule,
		BalanceSnapshot: cfg.BalanceSnapshotSchedule,
	})
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	tokens, err := api.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL())
	if err != nil {
		return err
	}
	handlers := api.NewHandlers(service, tokens, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.Routes(handlers, cfg.AllowedOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("component", "http"), zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.String("component", "http"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited", zap.String("component", "http"))
	return nil
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL must be configured")
	}
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database url parse failed: %w", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return dbpool, nil
}

// connectRedis returns nil when Redis is not configured or unreachable; rate
// limiting and job locks are then disabled.
func connectRedis(ctx context.Context, redisURL string, logger *zap.Logger) *redis.Client {
	if redisURL == "" {
		logger.Warn("redis url missing; rate limiting disabled", zap.String("component", "bootstrap"))
		return nil
	}
	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; rate limiting disabled", zap.String("component", "bootstrap"), zap.Error(err))
		return nil
	}

	client := redis.NewClient(redisOptions)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; rate limiting disabled", zap.String("component", "bootstrap"), zap.Error(err))
		client.Close()
		return nil
	}
	logger.Info("redis connected", zap.String("component", "bootstrap"))
	return client
}
