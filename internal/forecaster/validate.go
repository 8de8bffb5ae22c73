package forecaster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gridcast/gridcast/internal/models"
)

// ValidationError is a caller mistake in the request payload. Message is safe
// to return to the client verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missing(key string) *ValidationError {
	return &ValidationError{Field: key, Message: "Missing " + key}
}

// Validate checks body against spec and returns the request to forecast. body
// is only read.
func Validate(spec models.PromptSpec, body map[string]json.RawMessage) (models.ForecastRequest, error) {
	req := models.ForecastRequest{Kind: spec.Kind}

	if !spec.UsesRecords() {
		ctx, err := validateContext(spec, body)
		if err != nil {
			return models.ForecastRequest{}, err
		}
		req.Context = ctx
		return req, nil
	}

	raw, ok := body[spec.InputKey]
	if !ok || isFalsy(raw) {
		return models.ForecastRequest{}, missing(spec.InputKey)
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return models.ForecastRequest{}, &ValidationError{
			Field:   spec.InputKey,
			Message: fmt.Sprintf("Invalid %s: expected an array of records", spec.InputKey),
		}
	}

	if cols := missingColumns(records, spec.RequiredFields); len(cols) > 0 {
		return models.ForecastRequest{}, &ValidationError{
			Field:   spec.InputKey,
			Message: "Missing required event columns: " + strings.Join(cols, ", "),
		}
	}

	req.Records = records
	return req, nil
}

func validateContext(spec models.PromptSpec, body map[string]json.RawMessage) (map[string]string, error) {
	out := make(map[string]string, len(spec.ContextFields))

	for _, field := range spec.ContextFields {
		raw, ok := body[field.Name]
		if !ok || isFalsy(raw) {
			if field.Required {
				return nil, missing(field.Name)
			}
			out[field.Name] = field.Default
			continue
		}

		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, &ValidationError{
				Field:   field.Name,
				Message: fmt.Sprintf("Invalid %s: expected a string", field.Name),
			}
		}

		value = strings.TrimSpace(value)
		if value == "" {
			if field.Required {
				return nil, missing(field.Name)
			}
			value = field.Default
		}
		out[field.Name] = value
	}

	return out, nil
}

// decodeRecords requires an array whose elements are all JSON objects. Numbers
// keep their original literal so they reach the prompt unchanged.
func decodeRecords(raw json.RawMessage) ([]models.Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, fmt.Errorf("element %d is not an object", i)
		}

		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()

		var record models.Record
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// missingColumns lists, in the order given, the required fields absent from at
// least one record.
func missingColumns(records []models.Record, required []string) []string {
	var cols []string
	for _, field := range required {
		for _, record := range records {
			if _, ok := record[field]; !ok {
				cols = append(cols, field)
				break
			}
		}
	}
	return cols
}

// isFalsy reports whether raw is null, false, zero, or an empty string, array
// or object. Such values count as absent.
func isFalsy(raw json.RawMessage) bool {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}

	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case float64:
		return val == 0
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	}
	return false
}
