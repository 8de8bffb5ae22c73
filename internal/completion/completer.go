// Package completion talks to the upstream LLM completion service.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Completer performs one chat completion against a single configured model.
// Implementations must be safe for concurrent use and must not retry on their
// own; the Gateway owns retries, timeouts and rate limiting.
type Completer interface {
	Provider() string
	Model() string
	Complete(ctx context.Context, system, user string) (Reply, error)
}

// Reply is the first choice of a completion plus its token usage.
type Reply struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// StatusError carries the HTTP status returned by the provider API.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ErrEmptyReply is returned when the provider answers without any choice or
// text block. An empty text is a valid reply.
var ErrEmptyReply = errors.New("completion returned no text")
