package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/gridcast/gridcast/internal/inference"
	"github.com/gridcast/gridcast/internal/models"
)

// ErrUpstream matches every failure of the completion service.
var ErrUpstream = errors.New("upstream completion service failure")

// UpstreamError is returned by Gateway.Complete when no attempt succeeded.
type UpstreamError struct {
	Provider   string
	Attempts   int
	StatusCode int
	timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	kind := "failed"
	if e.timeout {
		kind = "timed out"
	}
	return fmt.Sprintf("%s completion %s after %d attempt(s): %v", e.Provider, kind, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Timeout reports whether the last attempt failed on a deadline.
func (e *UpstreamError) Timeout() bool {
	return e.timeout
}

// Call is one logical completion request.
type Call struct {
	RequestID string
	Kind      models.ForecastKind
	System    string
	User      string
}

// Observer receives per-attempt metrics. *metrics.Collector satisfies it.
type Observer interface {
	ObserveCompletion(provider, outcome string, latency time.Duration)
}

// Options configures a Gateway.
type Options struct {
	AttemptTimeout time.Duration
	Policy         RetryPolicy
	// RateLimit is the sustained request rate in requests per second. Zero
	// disables client-side limiting.
	RateLimit float64
	RateBurst int
	Inference *inference.Logger
	Observer  Observer
	Logger    *slog.Logger
}

// Gateway wraps a Completer with rate limiting, a per-attempt timeout and
// bounded retries. It is safe for concurrent use.
type Gateway struct {
	completer      Completer
	limiter        *rate.Limiter
	policy         RetryPolicy
	attemptTimeout time.Duration
	inference      *inference.Logger
	observer       Observer
	logger         *slog.Logger
}

// NewGateway builds a gateway around completer.
func NewGateway(completer Completer, opts Options) *Gateway {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Gateway{
		completer:      completer,
		limiter:        rate.NewLimiter(limit, burst),
		policy:         opts.Policy,
		attemptTimeout: opts.AttemptTimeout,
		inference:      opts.Inference,
		observer:       opts.Observer,
		logger:         logger,
	}
}

// Provider returns the configured provider name.
func (g *Gateway) Provider() string { return g.completer.Provider() }

// Model returns the configured model name.
func (g *Gateway) Model() string { return g.completer.Model() }

// Complete performs one logical completion, retrying transient failures. Any
// failure is returned as *UpstreamError.
func (g *Gateway) Complete(ctx context.Context, call Call) (models.RawCompletion, error) {
	var reply Reply
	start := time.Now()

	attempts, err := Retry(ctx, g.policy, func(attempt int) error {
		r, attemptErr := g.attempt(ctx, call, attempt)
		if attemptErr != nil {
			return attemptErr
		}
		reply = r
		return nil
	})
	if err != nil {
		return models.RawCompletion{}, g.upstreamError(ctx, attempts, err)
	}

	return models.RawCompletion{
		Text:             reply.Text,
		Provider:         g.completer.Provider(),
		Model:            g.completer.Model(),
		PromptTokens:     reply.PromptTokens,
		CompletionTokens: reply.CompletionTokens,
		Attempts:         attempts,
		Latency:          time.Since(start),
	}, nil
}

func (g *Gateway) attempt(ctx context.Context, call Call, attempt int) (Reply, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		err = fmt.Errorf("rate limiter: %w", err)
		// Wait fails early when the deadline cannot be met.
		if _, ok := ctx.Deadline(); ok && !errors.Is(ctx.Err(), context.Canceled) {
			return Reply{}, timeoutError{err}
		}
		return Reply{}, err
	}

	attemptCtx := ctx
	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := g.completer.Complete(attemptCtx, call.System, call.User)
	latency := time.Since(start)

	status := inference.StatusSuccess
	if err != nil {
		status = inference.StatusError
		if isTimeout(err) || (attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil) {
			status = inference.StatusTimeout
		}
	}

	g.record(ctx, call, attempt, reply, latency, status, err)

	if err == nil {
		return reply, nil
	}

	g.logger.Warn("completion attempt failed",
		"request_id", call.RequestID,
		"kind", call.Kind,
		"provider", g.completer.Provider(),
		"attempt", attempt,
		"status", status,
		"error", err)

	// Caller went away; nothing left to retry for.
	if ctx.Err() != nil {
		return Reply{}, err
	}

	if status == inference.StatusTimeout {
		return Reply{}, &RetryableError{Err: timeoutError{err}}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Transient() {
			return Reply{}, &RetryableError{Err: err, RetryAfter: statusErr.RetryAfter}
		}
		return Reply{}, err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Reply{}, &RetryableError{Err: err}
	}

	return Reply{}, err
}

func (g *Gateway) record(ctx context.Context, call Call, attempt int, reply Reply, latency time.Duration, status string, err error) {
	if g.observer != nil {
		g.observer.ObserveCompletion(g.completer.Provider(), status, latency)
	}

	if g.inference != nil {
		g.inference.LogCall(ctx, inference.LogCallParams{
			RequestID:    call.RequestID,
			Provider:     g.completer.Provider(),
			Model:        g.completer.Model(),
			Kind:         string(call.Kind),
			Attempt:      attempt,
			InputTokens:  reply.PromptTokens,
			OutputTokens: reply.CompletionTokens,
			Latency:      latency,
			Status:       status,
			Err:          err,
		})
	}
}

func (g *Gateway) upstreamError(ctx context.Context, attempts int, err error) *UpstreamError {
	upstream := &UpstreamError{
		Provider: g.completer.Provider(),
		Attempts: attempts,
		Err:      err,
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		upstream.StatusCode = statusErr.StatusCode
	}

	var te timeoutError
	switch {
	case errors.As(err, &te):
		upstream.timeout = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		upstream.timeout = true
	case isTimeout(err):
		upstream.timeout = true
	}

	return upstream
}

// timeoutError tags an attempt that ran out of time.
type timeoutError struct {
	err error
}

func (e timeoutError) Error() string { return e.err.Error() }

func (e timeoutError) Unwrap() error { return e.err }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
