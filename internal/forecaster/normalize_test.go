package forecaster

import (
	"testing"

	"github.com/gridcast/gridcast/internal/extract"
	"github.com/gridcast/gridcast/internal/models"
)

func TestNormalize(t *testing.T) {
	spec := mustSpec(t, models.KindEvents)

	tests := []struct {
		name        string
		reply       string
		wantOutcome models.ForecastOutcome
		wantBody    string
	}{
		{
			name:        "complete",
			reply:       `{"adjusted_forecast": [], "summary": "s"}`,
			wantOutcome: models.OutcomeComplete,
			wantBody:    `{"adjusted_forecast":[],"summary":"s"}`,
		},
		{
			name:        "wrong forecast key is partial",
			reply:       `{"forecast": [], "summary": "s"}`,
			wantOutcome: models.OutcomePartial,
			wantBody:    `{"forecast":[],"summary":"s"}`,
		},
		{
			name:        "summary only is partial",
			reply:       `{"summary": "s"}`,
			wantOutcome: models.OutcomePartial,
			wantBody:    `{"summary":"s"}`,
		},
		{
			name:        "object without answer keys",
			reply:       `{"event_id": "E1"}`,
			wantOutcome: models.OutcomeUnparsable,
			wantBody:    string(extract.Sentinel),
		},
		{
			name:        "truncated reply",
			reply:       `{"adjusted_forecast": [{"date": "2025-06-01", "demand": 1}, {"date": "2025-06-02", "dem`,
			wantOutcome: models.OutcomeUnparsable,
			wantBody:    string(extract.Sentinel),
		},
		{
			name:        "no json",
			reply:       "I cannot comply",
			wantOutcome: models.OutcomeUnparsable,
			wantBody:    string(extract.Sentinel),
		},
		{
			name:        "ambiguous with one answer",
			reply:       `Input echo: {"event_id": "E1"} Answer: {"adjusted_forecast": [], "summary": "s"}`,
			wantOutcome: models.OutcomeComplete,
			wantBody:    `{"adjusted_forecast":[],"summary":"s"}`,
		},
		{
			name:        "ambiguous with two answers",
			reply:       `{"summary": "draft"} {"adjusted_forecast": []}`,
			wantOutcome: models.OutcomeUnparsable,
			wantBody:    string(extract.Sentinel),
		},
		{
			name:        "ambiguous with no answer",
			reply:       `{"a": 1} {"b": 2}`,
			wantOutcome: models.OutcomeUnparsable,
			wantBody:    string(extract.Sentinel),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(spec, extract.Extract(tt.reply))

			if got.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", got.Outcome, tt.wantOutcome)
			}
			if string(got.Body) != tt.wantBody {
				t.Errorf("body = %s, want %s", got.Body, tt.wantBody)
			}
			if got.Kind != models.KindEvents {
				t.Errorf("kind = %s", got.Kind)
			}
		})
	}
}
