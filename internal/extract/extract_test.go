package extract

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrNoJSON},
		{name: "whitespace", input: "  \n\t ", wantErr: ErrNoJSON},
		{name: "prose", input: "I cannot comply with that request.", wantErr: ErrNoJSON},
		{name: "bare object", input: `{"forecast":[],"summary":"ok"}`, want: `{"forecast":[],"summary":"ok"}`},
		{
			name:  "wrapped in prose",
			input: "Sure! Here is the forecast:\n{\"forecast\": [{\"date\": \"2025-06-01\", \"expected_demand\": 145.8}], \"summary\": \"s\"}\nLet me know if you need more.",
			want:  `{"forecast":[{"date":"2025-06-01","expected_demand":145.8}],"summary":"s"}`,
		},
		{
			name:  "markdown fence",
			input: "```json\n{\"summary\": \"fenced\"}\n```",
			want:  `{"summary":"fenced"}`,
		},
		{name: "unterminated", input: `{"forecast": [1, 2`, wantErr: ErrNoJSON},
		{name: "malformed", input: `{forecast: nope}`, wantErr: ErrNoJSON},
		{name: "array only", input: `[{"a":1]`, wantErr: ErrNoJSON},
		{
			name:  "braces inside strings",
			input: `Result: {"summary": "use {curly} braces } freely", "forecast": []}`,
			want:  `{"summary":"use {curly} braces } freely","forecast":[]}`,
		},
		{
			name:  "escaped quotes",
			input: `{"summary": "he said \"{\" loudly"}`,
			want:  `{"summary":"he said \"{\" loudly"}`,
		},
		{
			name:    "unclosed brace encloses the rest",
			input:   `Note: { is not closed. {"forecast": []}`,
			wantErr: ErrNoJSON,
		},
		{
			name:    "object nested in invalid span",
			input:   `{ see {"forecast": [1]} }`,
			wantErr: ErrNoJSON,
		},
		{
			name:    "truncated reply",
			input:   `{"forecast": [{"date":"2025-06-01","expected_demand":100}, {"date":"2025-06-02","expected_dem`,
			wantErr: ErrNoJSON,
		},
		{
			name:  "invalid span before object",
			input: `{not json} then {"forecast": []}`,
			want:  `{"forecast":[]}`,
		},
		{name: "multiple objects", input: `{"a":1} and {"b":2}`, wantErr: ErrAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.input)

			if tt.wantErr != nil {
				if !errors.Is(got.Err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v (payload %s)", tt.wantErr, got.Err, got.Payload)
				}
				if got.Payload != nil {
					t.Fatalf("expected no payload, got %s", got.Payload)
				}
				return
			}

			if got.Err != nil {
				t.Fatalf("unexpected error: %v", got.Err)
			}
			if string(got.Payload) != tt.want {
				t.Fatalf("payload = %s, want %s", got.Payload, tt.want)
			}
		})
	}
}

func TestExtractAmbiguousKeepsEveryCandidate(t *testing.T) {
	got := Extract(`Draft: {"summary":"first"} Final: {"forecast":[],"summary":"second"}`)

	if !errors.Is(got.Err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", got.Err)
	}
	if len(got.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got.Candidates))
	}
	if string(got.Candidates[1]) != `{"forecast":[],"summary":"second"}` {
		t.Errorf("unexpected second candidate %s", got.Candidates[1])
	}
}

func TestExtractIsTotal(t *testing.T) {
	inputs := []string{
		"{",
		"}",
		"}{",
		`"`,
		`{"`,
		`{"\`,
		`\{"a":1}`,
		strings.Repeat("{", 1000),
		strings.Repeat("}", 1000),
		strings.Repeat(`{"a":`, 200) + "1" + strings.Repeat("}", 200),
		"\x00\xff{\"a\":\"\xfe\"}",
		"{}",
	}

	for _, input := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Extract panicked on %q: %v", input, r)
				}
			}()

			got := Extract(input)
			if got.Err == nil && !json.Valid(got.Payload) {
				t.Fatalf("Extract(%q) returned invalid payload %s", input, got.Payload)
			}
		}()
	}
}

func TestSentinelIsValidJSON(t *testing.T) {
	var body map[string]string
	if err := json.Unmarshal(Sentinel, &body); err != nil {
		t.Fatalf("sentinel is not valid JSON: %v", err)
	}
	if body["error"] != SentinelMessage {
		t.Fatalf("unexpected sentinel message %q", body["error"])
	}
}
