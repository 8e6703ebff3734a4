package llm

import "context"

// ModelConfig is the model configuration resolved from the upstream workflow
// service by opaque id. The core treats it as external, already-validated data.
type ModelConfig struct {
	ID             string  `json:"id"`
	ModelID        string  `json:"model_id"`
	APIKey         string  `json:"api_key"`
	BaseURL        string  `json:"base_url,omitempty"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
	EnableThinking bool    `json:"enable_thinking,omitempty"`
}

// ConfigFetcher resolves a model configuration by id, forwarding the caller's
// auth token to the upstream workflow service.
type ConfigFetcher interface {
	FetchModelConfig(ctx context.Context, configID, authToken string) (*ModelConfig, error)
}
