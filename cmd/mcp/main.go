package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/cors"

	"github.com/gridcast/gridcast/internal/completion"
	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/forecaster"
	"github.com/gridcast/gridcast/internal/inference"
	"github.com/gridcast/gridcast/internal/logging"
	"github.com/gridcast/gridcast/internal/mcp"
	"github.com/gridcast/gridcast/internal/prompts"
	"github.com/gridcast/gridcast/internal/server"
)

const version = "0.1.0"

// MCP mode serves the forecast kinds as tools. Inference logs go to the log
// stream only; the admin API lives in cmd/server.
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

	logger.Info("starting gridcast MCP server", "provider", cfg.Completion.Provider, "model", cfg.Completion.Model)

	inferenceLogger := inference.NewLogger(nil, logger)

	gatewayOpts := completion.OptionsFromConfig(cfg.Completion)
	gatewayOpts.Inference = inferenceLogger
	gatewayOpts.Logger = logger
	gateway := completion.NewGateway(completion.NewCompleter(cfg.Completion), gatewayOpts)

	forecasterInstance, err := forecaster.NewForecaster(prompts.DefaultRegistry(), gateway, nil, logger)
	if err != nil {
		logger.Error("failed to init forecaster", "error", err)
		os.Exit(1)
	}

	mcpServer := mcp.NewServer(forecasterInstance, logging.ServiceName, version, cfg.Forecast.RequestTimeout, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /mcp", mcpServer)
	// Root proxies to /mcp for clients configured with the bare host.
	mux.Handle("POST /{$}", mcpServer)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})(mux)

	srv := server.New(cfg.Server, logger, handler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	inferenceLogger.Wait()
	logger.Info("shutdown complete")
}
