package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	logx "github.com/fastflow/nexus/pkg/logger"
)

const defaultThinkingBudget = 2000

// buildChatModel constructs a Gemini chat model from a resolved configuration.
func buildChatModel(ctx context.Context, cfg *ModelConfig) (model.ToolCallingChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Str("model_config_id", cfg.ID).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	modelCfg := &gemini.Config{
		Client: client,
		Model:  cfg.ModelID,
	}
	if cfg.Temperature > 0 {
		modelCfg.Temperature = &cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		modelCfg.MaxTokens = &cfg.MaxTokens
	}
	if cfg.EnableThinking {
		modelCfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(defaultThinkingBudget)),
		}
	}

	chatModel, err := gemini.NewChatModel(ctx, modelCfg)
	if err != nil {
		logx.Error().Err(err).Str("model", cfg.ModelID).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}
	return chatModel, nil
}
