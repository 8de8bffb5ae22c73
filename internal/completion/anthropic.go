package completion

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// AnthropicOptions configures an AnthropicCompleter.
type AnthropicOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
}

func NewAnthropicCompleter(opts AnthropicOptions) *AnthropicCompleter {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// Retries belong to the gateway.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &AnthropicCompleter{
		client:      anthropic.NewClient(reqOpts...),
		model:       opts.Model,
		temperature: float64(opts.Temperature),
		maxTokens:   int64(opts.MaxTokens),
	}
}

func (c *AnthropicCompleter) Provider() string { return "anthropic" }

func (c *AnthropicCompleter) Model() string { return c.model }

// Complete returns the first text block of the reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (Reply, error) {
	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}

	resp, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return Reply{}, wrapAnthropicError(err)
	}

	// An empty text block is still an answer; extraction turns it into the
	// sentinel.
	text, found := "", false
	for _, block := range resp.Content {
		if block.Type == "text" {
			text, found = block.Text, true
			break
		}
	}
	if !found {
		return Reply{}, ErrEmptyReply
	}

	return Reply{
		Text:             text,
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode == 0 {
		return err
	}

	statusErr := &StatusError{StatusCode: apiErr.StatusCode, Err: err}
	if apiErr.Response != nil {
		if secs, convErr := strconv.Atoi(apiErr.Response.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			statusErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return statusErr
}
