package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gridcast/gridcast/internal/forecaster"
)

const maxBodyBytes = 8 << 20

var errInvalidBody = errors.New("invalid JSON body")

// decodeObject reads a JSON object body. Anything else, including null, an
// array or trailing garbage, is errInvalidBody.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	var body map[string]json.RawMessage
	if err := dec.Decode(&body); err != nil || body == nil {
		return nil, errInvalidBody
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errInvalidBody
	}

	return body, nil
}

// requiredString returns the trimmed string at key.
func requiredString(body map[string]json.RawMessage, key string) (string, error) {
	raw, ok := body[key]
	if !ok || string(raw) == "null" {
		return "", &forecaster.ValidationError{Field: key, Message: "Missing " + key}
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", &forecaster.ValidationError{Field: key, Message: "Invalid " + key + ": expected a string"}
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", &forecaster.ValidationError{Field: key, Message: "Missing " + key}
	}

	return value, nil
}
