package inference

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

// Attempt outcomes recorded in the status column.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Store persists inference logs. *database.InferenceLogRepository satisfies it.
type Store interface {
	Create(ctx context.Context, log models.InferenceLog) error
}

// Logger records every completion attempt to slog and, when a store is
// configured, to the database.
type Logger struct {
	store  Store
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewLogger creates a new inference logger. store may be nil.
func NewLogger(store Store, logger *slog.Logger) *Logger {
	return &Logger{
		store:  store,
		logger: logger,
	}
}

// LogCallParams describes one completion attempt.
type LogCallParams struct {
	RequestID    string
	Provider     string
	Model        string
	Kind         string
	Attempt      int
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
	Status       string
	Err          error
}

// LogCall records an attempt. Persistence happens asynchronously so the
// completion path never waits on the database.
func (l *Logger) LogCall(ctx context.Context, params LogCallParams) {
	entry := models.InferenceLog{
		RequestID:    params.RequestID,
		Provider:     params.Provider,
		Model:        params.Model,
		Kind:         params.Kind,
		Attempt:      params.Attempt,
		InputTokens:  params.InputTokens,
		OutputTokens: params.OutputTokens,
		CostUSD:      EstimateCost(params.Provider, params.Model, params.InputTokens, params.OutputTokens),
		LatencyMs:    int(params.Latency.Milliseconds()),
		Status:       params.Status,
		CreatedAt:    time.Now().UTC(),
	}
	if params.Err != nil {
		msg := params.Err.Error()
		entry.ErrorMessage = &msg
	}

	level := slog.LevelInfo
	if entry.Status != StatusSuccess {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "completion attempt",
		slog.String("request_id", entry.RequestID),
		slog.String("provider", entry.Provider),
		slog.String("model", entry.Model),
		slog.String("kind", entry.Kind),
		slog.Int("attempt", entry.Attempt),
		slog.Int("input_tokens", entry.InputTokens),
		slog.Int("output_tokens", entry.OutputTokens),
		slog.Float64("cost_usd", entry.CostUSD),
		slog.Int("latency_ms", entry.LatencyMs),
		slog.String("status", entry.Status),
	)

	if l.store == nil {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.store.Create(bgCtx, entry); err != nil {
			l.logger.Error("failed to log inference call", "error", err, "request_id", entry.RequestID)
		}
	}()
}

// Wait blocks until every pending write has finished.
func (l *Logger) Wait() {
	l.wg.Wait()
}

// EstimateCost provides rough cost estimates in USD (update with actual pricing).
func EstimateCost(provider, model string, inputTokens, outputTokens int) float64 {
	inputCostPer1M, outputCostPer1M := pricePer1M(provider, model)

	inputCost := (float64(inputTokens) / 1_000_000) * inputCostPer1M
	outputCost := (float64(outputTokens) / 1_000_000) * outputCostPer1M

	return inputCost + outputCost
}

func pricePer1M(provider, model string) (float64, float64) {
	switch model {
	case "llama3-70b-8192", "llama-3.3-70b-versatile":
		return 0.59, 0.79
	case "llama3-8b-8192", "llama-3.1-8b-instant":
		return 0.05, 0.08
	case "gpt-4o":
		return 2.50, 10.00
	case "gpt-4o-mini":
		return 0.15, 0.60
	case "gpt-4-turbo", "gpt-4-turbo-preview":
		return 10.00, 30.00
	case "claude-sonnet-4-20250514", "claude-3-5-sonnet-20240620":
		return 3.00, 15.00
	case "claude-3-haiku-20240307":
		return 0.25, 1.25
	}

	switch provider {
	case "groq":
		return 0.59, 0.79
	case "anthropic":
		return 3.00, 15.00
	default:
		return 5.00, 15.00
	}
}
