package inference

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

type memoryStore struct {
	mu   sync.Mutex
	logs []models.InferenceLog
	err  error
}

func (s *memoryStore) Create(ctx context.Context, log models.InferenceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return s.err
}

func TestLogCallPersistsAttempt(t *testing.T) {
	store := &memoryStore{}
	logger := NewLogger(store, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	logger.LogCall(context.Background(), LogCallParams{
		RequestID:    "req-1",
		Provider:     "groq",
		Model:        "llama3-70b-8192",
		Kind:         "grid",
		Attempt:      2,
		InputTokens:  1_000_000,
		OutputTokens: 1_000_000,
		Latency:      1500 * time.Millisecond,
		Status:       StatusTimeout,
		Err:          errors.New("deadline exceeded"),
	})
	logger.Wait()

	if len(store.logs) != 1 {
		t.Fatalf("expected 1 stored log, got %d", len(store.logs))
	}

	got := store.logs[0]
	if got.RequestID != "req-1" || got.Kind != "grid" || got.Attempt != 2 {
		t.Errorf("unexpected identity fields: %+v", got)
	}
	if got.LatencyMs != 1500 {
		t.Errorf("expected 1500ms latency, got %d", got.LatencyMs)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "deadline exceeded" {
		t.Errorf("expected error message to be recorded, got %v", got.ErrorMessage)
	}
	if math.Abs(got.CostUSD-1.38) > 1e-9 {
		t.Errorf("expected cost 1.38, got %v", got.CostUSD)
	}
}

func TestLogCallWithoutStoreOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(nil, slog.New(slog.NewTextHandler(&buf, nil)))

	logger.LogCall(context.Background(), LogCallParams{
		RequestID: "req-2",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Kind:      "weather",
		Attempt:   1,
		Status:    StatusSuccess,
	})
	logger.Wait()

	out := buf.String()
	if !strings.Contains(out, "request_id=req-2") || !strings.Contains(out, "kind=weather") {
		t.Fatalf("expected attempt to be logged, got %q", out)
	}
}

func TestLogCallStoreFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	store := &memoryStore{err: errors.New("connection refused")}
	logger := NewLogger(store, slog.New(slog.NewTextHandler(&buf, nil)))

	logger.LogCall(context.Background(), LogCallParams{RequestID: "req-3", Status: StatusError})
	logger.Wait()

	if !strings.Contains(buf.String(), "failed to log inference call") {
		t.Fatalf("expected store failure to be logged, got %q", buf.String())
	}
}

func TestEstimateCostFallsBackToProvider(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     float64
	}{
		{"openai", "gpt-4o-mini", 0.75},
		{"anthropic", "claude-unknown", 18.00},
		{"groq", "mixtral-unknown", 1.38},
		{"openai", "unknown", 20.00},
	}

	for _, tt := range tests {
		got := EstimateCost(tt.provider, tt.model, 1_000_000, 1_000_000)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateCost(%s, %s) = %v, want %v", tt.provider, tt.model, got, tt.want)
		}
	}
}
