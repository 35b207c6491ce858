package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/shoppos/pos-backend/internal/cron"
	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/db"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/metrics"
	"github.com/shoppos/pos-backend/pkg/outbox"
	"github.com/shoppos/pos-backend/pkg/redis"
)

const (
	serviceName = "cron-worker"
	lockName    = "maintenance"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "maintenance worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "maintenance worker shut down")
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "interval": cfg.Cron.Interval.String()})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	scheduler, reg, err := buildScheduler(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, ":"+cfg.App.Port, reg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "maintenance worker started")
	return scheduler.Run(ctx)
}

func buildScheduler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Scheduler, *prometheus.Registry, error) {
	lock, err := cron.NewRedisLock(redisClient, lockName, cfg.Cron.LockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("maintenance lock: %w", err)
	}

	reg := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(reg)
	outboxRepo := outbox.NewRepository(dbClient.DB())

	retention, err := cron.NewOutboxRetentionJob(logg, outboxRepo, cfg.Cron.OutboxRetentionDays)
	if err != nil {
		return nil, nil, fmt.Errorf("outbox retention job: %w", err)
	}
	deadLetters, err := cron.NewDeadLetterJob(logg, outboxRepo, jobMetrics, cfg.Outbox.MaxAttempts)
	if err != nil {
		return nil, nil, fmt.Errorf("dead letter job: %w", err)
	}

	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Registry: cron.NewRegistry(retention, deadLetters),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: %w", err)
	}
	return scheduler, reg, nil
}
