package models

import (
	"encoding/json"
	"time"
)

// ForecastKind identifies a category of forecasting request. Each kind has its
// own prompt template and expected output schema.
type ForecastKind string

const (
	KindGrid        ForecastKind = "grid"
	KindEvents      ForecastKind = "events"
	KindWeather     ForecastKind = "weather"
	KindCommunity   ForecastKind = "community"
	KindBillHistory ForecastKind = "bill-history"
	KindNoData      ForecastKind = "no-data"
)

// Record is one caller-supplied input row (an uploaded CSV line, an hourly
// weather reading, a scheduled event).
type Record map[string]interface{}

// ContextField is a scalar input used by kinds that carry no record list.
type ContextField struct {
	Name     string `json:"name"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required"`
}

// PromptSpec binds a forecast kind to its prompt and its expected schema. Specs
// are built once at start-up and never mutated.
type PromptSpec struct {
	Kind         ForecastKind `json:"kind"`
	Description  string       `json:"description"`
	SystemPrompt string       `json:"-"`
	Template     string       `json:"-"`
	InputKey     string       `json:"input_key"`
	SampleCap    int          `json:"sample_cap"`
	// RequiredFields are columns every input record must carry.
	RequiredFields []string       `json:"required_fields,omitempty"`
	ContextFields  []ContextField `json:"context_fields,omitempty"`
	// ForecastKey is the top-level array key the model is asked to produce.
	ForecastKey string   `json:"forecast_key"`
	ResultKeys  []string `json:"result_keys"`
}

// UsesRecords reports whether the kind is driven by a record list rather than
// scalar context fields.
func (s PromptSpec) UsesRecords() bool {
	return len(s.ContextFields) == 0
}

// ForecastRequest is the validated input of one pipeline traversal.
type ForecastRequest struct {
	RequestID string
	Kind      ForecastKind
	Records   []Record
	Context   map[string]string
}

// RawCompletion is the unprocessed reply of the completion service.
type RawCompletion struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Attempts         int
	Latency          time.Duration
}

// ForecastOutcome classifies what the pipeline produced.
type ForecastOutcome string

const (
	// OutcomeComplete means the forecast key was present.
	OutcomeComplete ForecastOutcome = "complete"
	// OutcomePartial means a JSON object was found but the forecast key was not
	// (typically summary only).
	OutcomePartial ForecastOutcome = "partial"
	// OutcomeUnparsable means no usable JSON object could be extracted and the
	// body is the sentinel error object.
	OutcomeUnparsable ForecastOutcome = "unparsable"
)

// ForecastResult is what the pipeline hands back to the HTTP layer. Body is
// always a single JSON object: either the model's payload or the sentinel.
type ForecastResult struct {
	RequestID string          `json:"request_id"`
	Kind      ForecastKind    `json:"kind"`
	Outcome   ForecastOutcome `json:"outcome"`
	Body      json.RawMessage `json:"body"`
	Model     string          `json:"model,omitempty"`
}
