package models

import "time"

// InferenceLog represents a single completion attempt against the upstream LLM.
type InferenceLog struct {
	ID           int       `json:"id"`
	RequestID    string    `json:"request_id"`
	Provider     string    `json:"provider"`      // 'groq', 'openai', 'anthropic'
	Model        string    `json:"model"`         // 'llama3-70b-8192', 'gpt-4o-mini', ...
	Kind         string    `json:"kind"`          // forecast kind that triggered the call
	Attempt      int       `json:"attempt"`       // 1-based attempt number within the retry policy
	InputTokens  int       `json:"input_tokens"`  // prompt tokens reported by the provider
	OutputTokens int       `json:"output_tokens"` // completion tokens reported by the provider
	CostUSD      float64   `json:"cost_usd"`      // estimated cost in USD
	LatencyMs    int       `json:"latency_ms"`
	Status       string    `json:"status"` // 'success', 'error', 'timeout'
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// InferenceLogStats represents aggregated statistics
type InferenceLogStats struct {
	TotalCalls      int     `json:"total_calls"`
	TotalTokens     int64   `json:"total_tokens"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	SuccessfulCalls int     `json:"successful_calls"`
	FailedCalls     int     `json:"failed_calls"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
}

// InferenceLogQuery represents query parameters for filtering logs
type InferenceLogQuery struct {
	Provider  string
	Kind      string
	Status    string
	RequestID string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
