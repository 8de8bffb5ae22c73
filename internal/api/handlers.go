package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/gridcast/gridcast/internal/prompts"
)

// Info describes the running service for GET /api/info.
type Info struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Handler serves the service metadata endpoints.
type Handler struct {
	registry    *prompts.Registry
	info        Info
	healthCheck func(context.Context) error
	logger      *slog.Logger
	startTime   time.Time
}

func NewHandler(registry *prompts.Registry, info Info, healthCheck func(context.Context) error, logger *slog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		healthCheck: healthCheck,
		info:        info,
		logger:      logger,
		startTime:   time.Now(),
	}
}

// HealthHandler handles GET /healthz. With a database configured it also
// reports the database and answers 503 when it is unreachable.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck == nil {
		writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if err := h.healthCheck(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "unavailable",
		})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// InfoHandler handles GET /api/info
func (h *Handler) InfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"service":        h.info.Service,
		"version":        h.info.Version,
		"provider":       h.info.Provider,
		"model":          h.info.Model,
		"kinds":          h.registry.Kinds(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// KindResponse describes one forecast endpoint.
type KindResponse struct {
	models.PromptSpec
	Path string `json:"path"`
}

// KindsHandler handles GET /api/forecast/kinds
func (h *Handler) KindsHandler(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.Specs()
	kinds := make([]KindResponse, 0, len(specs))
	for _, spec := range specs {
		kinds = append(kinds, KindResponse{PromptSpec: spec, Path: "/forecast/" + string(spec.Kind)})
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"kinds": kinds,
		"count": len(kinds),
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, map[string]string{"error": msg})
}

// writeRaw writes an already encoded JSON object.
func writeRaw(w http.ResponseWriter, logger *slog.Logger, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}
