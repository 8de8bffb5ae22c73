package forecaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gridcast/gridcast/internal/completion"
	"github.com/gridcast/gridcast/internal/extract"
	"github.com/gridcast/gridcast/internal/models"
	"github.com/gridcast/gridcast/internal/prompts"
)

// Stage is a state of one pipeline traversal.
type Stage string

const (
	StageReceived   Stage = "received"
	StageValidated  Stage = "validated"
	StagePrompted   Stage = "prompted"
	StageCompleted  Stage = "completed"
	StageExtracted  Stage = "extracted"
	StageNormalized Stage = "normalized"
)

// ErrUnknownKind is returned when no prompt spec is registered for a kind.
var ErrUnknownKind = errors.New("unknown forecast kind")

// StageError records the last stage reached before a traversal failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("forecast failed after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Gateway performs one logical completion. *completion.Gateway satisfies it.
type Gateway interface {
	Complete(ctx context.Context, call completion.Call) (models.RawCompletion, error)
}

// MetricsRecorder receives one observation per traversal.
type MetricsRecorder interface {
	ObserveForecast(kind, outcome string)
}

// Forecaster runs the validate, prompt, complete, extract, normalize pipeline.
// It holds no per-request state and is safe for concurrent use.
type Forecaster struct {
	registry *prompts.Registry
	builder  *prompts.Builder
	gateway  Gateway
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// NewForecaster wires the pipeline. metrics may be nil.
func NewForecaster(registry *prompts.Registry, gateway Gateway, metrics MetricsRecorder, logger *slog.Logger) (*Forecaster, error) {
	builder, err := prompts.NewBuilder(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt templates: %w", err)
	}

	return &Forecaster{
		registry: registry,
		builder:  builder,
		gateway:  gateway,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Registry returns the prompt registry the forecaster serves.
func (f *Forecaster) Registry() *prompts.Registry {
	return f.registry
}

// Run forecasts one request. A returned error is a *StageError wrapping one of
// ErrUnknownKind, *ValidationError, completion.ErrUpstream or an internal
// failure. Unparsable and partial model output are not errors; they are
// reported through the result's Outcome.
func (f *Forecaster) Run(ctx context.Context, kind models.ForecastKind, requestID string, body map[string]json.RawMessage) (models.ForecastResult, error) {
	logger := f.logger.With("request_id", requestID, "kind", kind)
	start := time.Now()

	spec, ok := f.registry.Lookup(kind)
	if !ok {
		return models.ForecastResult{}, &StageError{Stage: StageReceived, Err: ErrUnknownKind}
	}

	req, err := Validate(spec, body)
	if err != nil {
		logger.Info("forecast request rejected", "error", err)
		return models.ForecastResult{}, f.fail(kind, StageReceived, err)
	}
	req.RequestID = requestID

	result, err := f.forecast(ctx, logger, spec, req)
	if err != nil {
		return models.ForecastResult{}, err
	}

	logger.Info("forecast completed",
		"outcome", result.Outcome,
		"model", result.Model,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func (f *Forecaster) forecast(ctx context.Context, logger *slog.Logger, spec models.PromptSpec, req models.ForecastRequest) (models.ForecastResult, error) {
	prompt, err := f.builder.Build(spec, req)
	if err != nil {
		logger.Error("failed to build prompt", "error", err)
		return models.ForecastResult{}, f.fail(spec.Kind, StageValidated, err)
	}

	logger.Debug("prompt built",
		"records", len(req.Records),
		"sample_size", prompt.SampleSize,
		"prompt_length", len(prompt.User))

	raw, err := f.gateway.Complete(ctx, completion.Call{
		RequestID: req.RequestID,
		Kind:      spec.Kind,
		System:    prompt.System,
		User:      prompt.User,
	})
	if err != nil {
		logger.Error("completion failed", "error", err)
		return models.ForecastResult{}, f.fail(spec.Kind, StagePrompted, err)
	}

	logger.Debug("completion received",
		"provider", raw.Provider,
		"attempts", raw.Attempts,
		"latency_ms", raw.Latency.Milliseconds(),
		"reply_length", len(raw.Text))

	extraction := extract.Extract(raw.Text)
	if extraction.Err != nil {
		logger.Warn("completion did not yield a single JSON object",
			"error", extraction.Err,
			"candidates", len(extraction.Candidates))
	}

	result := Normalize(spec, extraction)
	result.RequestID = req.RequestID
	result.Model = raw.Model

	if f.metrics != nil {
		f.metrics.ObserveForecast(string(spec.Kind), string(result.Outcome))
	}

	return result, nil
}

func (f *Forecaster) fail(kind models.ForecastKind, stage Stage, err error) error {
	if f.metrics != nil {
		f.metrics.ObserveForecast(string(kind), "failed_"+string(stage))
	}
	return &StageError{Stage: stage, Err: err}
}
