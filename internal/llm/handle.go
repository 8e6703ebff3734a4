package llm

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	logx "github.com/fastflow/nexus/pkg/logger"
)

// ToolChoice is the loop-level tool-choice policy for one model call.
type ToolChoice string

const (
	// ToolChoiceNone withholds the tool set entirely.
	ToolChoiceNone ToolChoice = "none"
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceRequired forces at least one tool call this round.
	ToolChoiceRequired ToolChoice = "required"
)

// Handle is a stateless view over a cached model runtime. Binding tools never
// mutates the cached entry: WithTools returns a fresh bound model, leaving the
// cache pristine for reuse with different tool sets.
type Handle struct {
	rt *runtime
}

// Config returns the configuration the underlying model was built from.
func (h *Handle) Config() *ModelConfig {
	return h.rt.cfg
}

// Stream invokes the model with the given messages, tool set, and tool-choice
// mode, returning the provider's token stream.
func (h *Handle) Stream(
	ctx context.Context,
	messages []*schema.Message,
	tools []*schema.ToolInfo,
	choice ToolChoice,
) (*schema.StreamReader[*schema.Message], error) {
	chatModel, opts, err := h.bind(tools, choice)
	if err != nil {
		return nil, err
	}
	return chatModel.Stream(ctx, messages, opts...)
}

// Generate invokes the model without tools and returns the full response.
func (h *Handle) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	return h.rt.model.Generate(ctx, messages)
}

// bind attaches the tool set and tool-choice mode, applying the provider
// compatibility rewrite for thinking mode.
func (h *Handle) bind(tools []*schema.ToolInfo, choice ToolChoice) (model.BaseChatModel, []model.Option, error) {
	choice = h.normalizeToolChoice(choice)
	if len(tools) == 0 || choice == ToolChoiceNone {
		return h.rt.model, nil, nil
	}

	bound, err := h.rt.model.WithTools(tools)
	if err != nil {
		return nil, nil, err
	}

	schemaChoice := schema.ToolChoiceAllowed
	if choice == ToolChoiceRequired {
		schemaChoice = schema.ToolChoiceForced
	}
	return bound, []model.Option{model.WithToolChoice(schemaChoice)}, nil
}

// normalizeToolChoice downgrades a forced tool choice to auto when extended
// thinking is active, since the two are incompatible on this provider.
func (h *Handle) normalizeToolChoice(choice ToolChoice) ToolChoice {
	if h.rt.cfg.EnableThinking && choice == ToolChoiceRequired {
		logx.Warn().
			Str("model_config_id", h.rt.cfg.ID).
			Str("tool_choice", string(choice)).
			Msg("Thinking mode active; rewriting tool_choice to auto")
		return ToolChoiceAuto
	}
	return choice
}
