package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/shoppos/pos-backend/api/routes"
	"github.com/shoppos/pos-backend/internal/auth"
	"github.com/shoppos/pos-backend/internal/items"
	"github.com/shoppos/pos-backend/internal/locations"
	"github.com/shoppos/pos-backend/internal/offers"
	"github.com/shoppos/pos-backend/internal/reports"
	"github.com/shoppos/pos-backend/internal/sales"
	"github.com/shoppos/pos-backend/internal/settings"
	"github.com/shoppos/pos-backend/internal/users"
	"github.com/shoppos/pos-backend/pkg/auth/session"
	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/db"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/metrics"
	"github.com/shoppos/pos-backend/pkg/migrate"
	"github.com/shoppos/pos-backend/pkg/outbox"
	"github.com/shoppos/pos-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, sessionManager, registry)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(*deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	registry *prometheus.Registry,
) (*routes.Dependencies, error) {
	conn := dbClient.DB()

	userRepo := users.NewRepository(conn)
	userService, err := users.NewService(userRepo, cfg.Password)
	if err != nil {
		return nil, err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}
	registerService, err := auth.NewRegisterService(userService, !cfg.App.IsProd())
	if err != nil {
		return nil, err
	}

	itemRepo := items.NewRepository(conn)
	itemService, err := items.NewService(itemRepo)
	if err != nil {
		return nil, err
	}

	saleRepo := sales.NewRepository(conn)
	saleService, err := sales.NewService(
		dbClient,
		itemRepo,
		saleRepo,
		saleRepo,
		outbox.NewService(outbox.NewRepository(conn), logg),
		metrics.NewSaleMetrics(registry),
		logg,
		sales.Options{
			VerifyTotals: cfg.FeatureFlags.VerifySaleTotals,
			EmitEvents:   cfg.FeatureFlags.SaleEvents,
		},
	)
	if err != nil {
		return nil, err
	}

	offerService, err := offers.NewService(offers.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	locationService, err := locations.NewService(dbClient, locations.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	settingsService, err := settings.NewService(settings.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	reportService, err := reports.NewService(reports.NewRepository(conn), redisClient, logg, reports.Options{
		LowStockThreshold: cfg.Reports.LowStockThreshold,
		CacheTTL:          cfg.Reports.DashboardCacheTTL,
	})
	if err != nil {
		return nil, err
	}

	return &routes.Dependencies{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Sessions:    sessionManager,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
		Gatherer:    registry,
		Auth:        authService,
		Register:    registerService,
		Users:       userService,
		Items:       itemService,
		Sales:       saleService,
		Offers:      offerService,
		Locations:   locationService,
		Settings:    settingsService,
		Reports:     reportService,
	}, nil
}
