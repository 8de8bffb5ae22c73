package forecaster

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"

	"github.com/gridcast/gridcast/internal/extract"
	"github.com/gridcast/gridcast/internal/models"
)

// Normalize turns an extraction into the body returned to the caller. The body
// is always one JSON object: the model's payload untouched, or the sentinel. A
// payload with neither the forecast key nor a summary is not an answer and
// yields the sentinel.
func Normalize(spec models.PromptSpec, res extract.Result) models.ForecastResult {
	payload := res.Payload

	switch {
	case res.Err == nil && payload != nil:
	case errors.Is(res.Err, extract.ErrAmbiguous):
		payload = pickCandidate(spec, res.Candidates)
	default:
		payload = nil
	}

	if payload == nil || !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() ||
		!isAnswer(spec, payload) {
		return models.ForecastResult{
			Kind:    spec.Kind,
			Outcome: models.OutcomeUnparsable,
			Body:    extract.Sentinel,
		}
	}

	outcome := models.OutcomePartial
	if hasKey(payload, spec.ForecastKey) {
		outcome = models.OutcomeComplete
	}

	return models.ForecastResult{
		Kind:    spec.Kind,
		Outcome: outcome,
		Body:    payload,
	}
}

// isAnswer reports whether payload carries the forecast key or a summary.
func isAnswer(spec models.PromptSpec, payload []byte) bool {
	return hasKey(payload, spec.ForecastKey) || hasKey(payload, "summary")
}

// pickCandidate returns the only candidate that looks like an answer to spec,
// or nil when zero or several do.
func pickCandidate(spec models.PromptSpec, candidates []json.RawMessage) json.RawMessage {
	var chosen json.RawMessage
	for _, c := range candidates {
		if !isAnswer(spec, c) {
			continue
		}
		if chosen != nil {
			return nil
		}
		chosen = c
	}
	return chosen
}

// hasKey reports whether payload has the top-level key. Keys in the registry
// are plain identifiers, so they are valid gjson paths as-is.
func hasKey(payload []byte, key string) bool {
	return gjson.GetBytes(payload, key).Exists()
}
