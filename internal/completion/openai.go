package completion

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAICompleter calls any OpenAI-compatible chat completion API. Groq is
// served by pointing BaseURL at its OpenAI-compatible endpoint.
type OpenAICompleter struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
}

// OpenAIOptions configures an OpenAICompleter.
type OpenAIOptions struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
}

// NewOpenAICompleter builds a client once; it is shared by all requests.
func NewOpenAICompleter(opts OpenAIOptions) *OpenAICompleter {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	provider := opts.Provider
	if provider == "" {
		provider = "openai"
	}

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(cfg),
		provider:    provider,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

func (c *OpenAICompleter) Provider() string { return c.provider }

func (c *OpenAICompleter) Model() string { return c.model }

// Complete sends the system and user messages and returns the first choice.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, wrapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return Reply{}, ErrEmptyReply
	}

	return Reply{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	return err
}
