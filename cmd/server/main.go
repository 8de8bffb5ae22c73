package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridcast/gridcast/internal/api"
	"github.com/gridcast/gridcast/internal/auth"
	"github.com/gridcast/gridcast/internal/cloudsql"
	"github.com/gridcast/gridcast/internal/completion"
	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/forecaster"
	"github.com/gridcast/gridcast/internal/geo"
	"github.com/gridcast/gridcast/internal/inference"
	"github.com/gridcast/gridcast/internal/logging"
	"github.com/gridcast/gridcast/internal/metrics"
	"github.com/gridcast/gridcast/internal/prompts"
	"github.com/gridcast/gridcast/internal/server"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting gridcast", "version", version, "provider", cfg.Completion.Provider, "model", cfg.Completion.Model)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Inference logs always go to slog; Postgres is optional.
	var inferenceStore inference.Store
	var inferenceLogs api.InferenceLogReader
	var healthCheck func(context.Context) error
	if cfg.Database.Enabled() {
		db, err := connectDatabase(cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := database.NewInferenceLogRepository(db)
		inferenceStore = repo
		inferenceLogs = repo
		healthCheck = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
	} else {
		logger.Info("no database configured, inference logs are written to the log stream only")
	}

	inferenceLogger := inference.NewLogger(inferenceStore, logger)

	gatewayOpts := completion.OptionsFromConfig(cfg.Completion)
	gatewayOpts.Inference = inferenceLogger
	gatewayOpts.Observer = collector
	gatewayOpts.Logger = logger
	gateway := completion.NewGateway(completion.NewCompleter(cfg.Completion), gatewayOpts)

	forecasterInstance, err := forecaster.NewForecaster(prompts.DefaultRegistry(), gateway, collector, logger)
	if err != nil {
		logger.Error("failed to init forecaster", "error", err)
		os.Exit(1)
	}

	authConfig, err := auth.NewConfig(cfg.Auth)
	if err != nil {
		logger.Error("failed to init auth", "error", err)
		os.Exit(1)
	}
	logger.Info("auth configured", "admin_login_enabled", authConfig.PasswordHash != "")

	handler := api.NewRouter(api.Dependencies{
		Forecaster:    forecasterInstance,
		Weather:       geo.NewClient(cfg.Geo, logger),
		InferenceLogs: inferenceLogs,
		HealthCheck:   healthCheck,
		Auth:          authConfig,
		Metrics:       collector,
		Forecast:      cfg.Forecast,
		CORS:          cfg.CORS,
		Info: api.Info{
			Service:  logging.ServiceName,
			Version:  version,
			Provider: gateway.Provider(),
			Model:    gateway.Model(),
		},
		Logger: logger,
	})

	srv := server.New(cfg.Server, logger, handler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	inferenceLogger.Wait()
	logger.Info("shutdown complete")
}

func connectDatabase(cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	dbURL, err := cloudsql.BuildDatabaseURL(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database configuration", "config", cloudsql.ConnectionSummary(cfg))

	ctx := context.Background()
	db, err := database.Connect(ctx, database.DefaultConfig(dbURL))
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")

	// Non-fatal so the forecast API still serves when migrations fail.
	if err := database.RunMigrations(ctx, db, logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	return db, nil
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
