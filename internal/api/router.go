package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/gridcast/gridcast/internal/auth"
	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/forecaster"
	"github.com/gridcast/gridcast/internal/metrics"
)

// Dependencies bundles everything the HTTP layer serves.
type Dependencies struct {
	Forecaster *forecaster.Forecaster
	// Weather backs POST /forecast/weather/location. Optional.
	Weather WeatherSource
	// InferenceLogs backs the admin endpoints, which are only registered when
	// it is set.
	InferenceLogs InferenceLogReader
	// HealthCheck is consulted by GET /healthz when set.
	HealthCheck func(context.Context) error
	Auth        auth.Config
	Metrics     *metrics.Collector
	Forecast    config.ForecastConfig
	CORS        config.CORSConfig
	Info        Info
	Logger      *slog.Logger
}

// SetupRoutes registers all API routes on mux.
func SetupRoutes(mux *http.ServeMux, deps Dependencies) {
	handler := NewHandler(deps.Forecaster.Registry(), deps.Info, deps.HealthCheck, deps.Logger)
	forecastHandler := NewForecastHandler(deps.Forecaster, deps.Weather, deps.Forecast.UnparsableStatus, deps.Forecast.RequestTimeout, deps.Logger)
	authHandler := NewAuthHandler(deps.Auth, deps.Logger)

	mux.HandleFunc("GET /healthz", handler.HealthHandler)
	mux.HandleFunc("GET /api/info", handler.InfoHandler)
	mux.HandleFunc("GET /api/forecast/kinds", handler.KindsHandler)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("POST /forecast/{kind}", forecastHandler.Forecast)
	if deps.Weather != nil {
		mux.HandleFunc("POST /forecast/weather/location", forecastHandler.ForecastWeatherForLocation)
	}

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	if deps.InferenceLogs != nil {
		inferenceLogHandler := NewInferenceLogHandler(deps.InferenceLogs, deps.Logger)
		requireAuth := auth.AuthMiddleware(deps.Auth)

		mux.Handle("GET /api/admin/inference-logs", requireAuth(http.HandlerFunc(inferenceLogHandler.ListInferenceLogs)))
		mux.Handle("GET /api/admin/inference-logs/stats", requireAuth(http.HandlerFunc(inferenceLogHandler.GetInferenceStats)))
	}
}

// NewRouter builds the complete handler: routes wrapped in request id,
// panic recovery, CORS and metrics middleware.
func NewRouter(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	SetupRoutes(mux, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = deps.Metrics.InstrumentHandler(handler)
	}

	handler = cors.Handler(cors.Options{
		AllowedOrigins: deps.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, OutcomeHeader},
		MaxAge:         300,
	})(handler)

	handler = RecoverMiddleware(deps.Logger)(handler)
	return RequestIDMiddleware(handler)
}
