package completion

import (
	"github.com/gridcast/gridcast/internal/config"
)

// NewCompleter builds the completer for the configured provider. Groq and
// OpenAI share the OpenAI-compatible client.
func NewCompleter(cfg config.CompletionConfig) Completer {
	if cfg.Provider == config.ProviderAnthropic {
		return NewAnthropicCompleter(AnthropicOptions{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	}

	return NewOpenAICompleter(OpenAIOptions{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
}

// PolicyFromConfig overlays the configured attempt count and backoff bounds
// on DefaultRetryPolicy.
func PolicyFromConfig(cfg config.CompletionConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoff > 0 {
		policy.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		policy.MaxBackoff = cfg.MaxBackoff
	}
	return policy
}

// OptionsFromConfig returns gateway options for cfg. Callers fill in the
// inference logger, observer and logger.
func OptionsFromConfig(cfg config.CompletionConfig) Options {
	return Options{
		AttemptTimeout: cfg.Timeout,
		Policy:         PolicyFromConfig(cfg),
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}
}
