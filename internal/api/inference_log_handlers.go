package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

// InferenceLogReader is the read side of the inference log store.
// *database.InferenceLogRepository satisfies it.
type InferenceLogReader interface {
	List(ctx context.Context, query models.InferenceLogQuery) ([]models.InferenceLog, error)
	GetStats(ctx context.Context, startDate, endDate *time.Time) (*models.InferenceLogStats, error)
}

// InferenceLogHandler handles HTTP requests for inference log management
type InferenceLogHandler struct {
	repo   InferenceLogReader
	logger *slog.Logger
}

// NewInferenceLogHandler creates a new handler
func NewInferenceLogHandler(repo InferenceLogReader, logger *slog.Logger) *InferenceLogHandler {
	return &InferenceLogHandler{
		repo:   repo,
		logger: logger,
	}
}

// ListInferenceLogs handles GET /api/admin/inference-logs
func (h *InferenceLogHandler) ListInferenceLogs(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := models.InferenceLogQuery{
		Provider:  params.Get("provider"),
		Kind:      params.Get("kind"),
		Status:    params.Get("status"),
		RequestID: params.Get("request_id"),
		Limit:     100,
	}

	if limit, err := strconv.Atoi(params.Get("limit")); err == nil && limit > 0 {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(params.Get("offset")); err == nil && offset >= 0 {
		query.Offset = offset
	}

	var ok bool
	if query.StartDate, ok = parseDate(params.Get("start_date")); !ok {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid start_date: expected RFC3339")
		return
	}
	if query.EndDate, ok = parseDate(params.Get("end_date")); !ok {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid end_date: expected RFC3339")
		return
	}

	logs, err := h.repo.List(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to list inference logs", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list inference logs")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetInferenceStats handles GET /api/admin/inference-logs/stats
func (h *InferenceLogHandler) GetInferenceStats(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	startDate, ok := parseDate(params.Get("start_date"))
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid start_date: expected RFC3339")
		return
	}
	endDate, ok := parseDate(params.Get("end_date"))
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid end_date: expected RFC3339")
		return
	}

	stats, err := h.repo.GetStats(r.Context(), startDate, endDate)
	if err != nil {
		h.logger.Error("failed to get inference stats", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to get inference stats")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, stats)
}

// parseDate parses an optional RFC3339 filter. An empty value is no filter.
func parseDate(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
