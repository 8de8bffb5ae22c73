// Package extract pulls JSON objects out of free-text model replies.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// SentinelMessage is the error text returned to callers when no usable JSON
// object could be recovered from a completion.
const SentinelMessage = "Failed to parse JSON from LLM response."

// Sentinel is the fixed error object used in place of an unparsable reply.
var Sentinel = json.RawMessage(`{"error":"Failed to parse JSON from LLM response."}`)

var (
	// ErrNoJSON means the text contains no balanced span that parses as a JSON
	// object.
	ErrNoJSON = errors.New("no JSON object found in completion")
	// ErrAmbiguous means more than one top-level JSON object was found.
	ErrAmbiguous = errors.New("multiple JSON objects found in completion")
)

// Result is the outcome of scanning one completion. Exactly one of Payload or
// Err is meaningful: Payload is set when Err is nil, Candidates is set when Err
// is ErrAmbiguous.
type Result struct {
	Payload    json.RawMessage
	Candidates []json.RawMessage
	Err        error
}

// Extract scans text for balanced top-level {...} spans, respecting quoted
// strings and escapes, and keeps the spans that are valid JSON objects. Kept
// spans are compacted. Extract never panics.
func Extract(text string) Result {
	candidates := scan(text)

	switch len(candidates) {
	case 0:
		return Result{Err: ErrNoJSON}
	case 1:
		return Result{Payload: candidates[0]}
	default:
		return Result{Candidates: candidates, Err: ErrAmbiguous}
	}
}

// scan returns every top-level brace span in text that parses as a JSON
// object. A closed span that is not valid JSON is skipped whole, objects nested
// inside it included. An opening brace that is never closed ends the scan,
// since the rest of the text sits inside it; a reply cut off mid-object must
// not surface one of its inner records.
func scan(text string) []json.RawMessage {
	var spans []json.RawMessage

	for start := 0; start < len(text); {
		i := strings.IndexByte(text[start:], '{')
		if i < 0 {
			break
		}
		open := start + i

		end := matchBrace(text, open)
		if end < 0 {
			break
		}
		start = end + 1

		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(text[open:end+1])); err != nil {
			continue
		}
		spans = append(spans, json.RawMessage(buf.Bytes()))
	}

	return spans
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(text string, open int) int {
	depth := 0
	inString := false
	escaped := false

	for i := open; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}
