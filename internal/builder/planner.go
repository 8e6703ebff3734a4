package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/fastflow/nexus/internal/graph"
	"github.com/fastflow/nexus/internal/llm"
)

// builderSystemPrompt instructs the planner to emit a bare JSON plan over
// the closed operation vocabulary.
const builderSystemPrompt = `You are a workflow graph planner. Given the current workflow graph and a user instruction, produce the minimal sequence of operations that realises the instruction.

Operation vocabulary:
- ADD_NODE: params {type (required), id, name, intro, inputs, outputs} or a full data payload.
- REMOVE_NODE: target_id of the node to remove; its edges are removed with it.
- ADD_EDGE: params {source, target, sourceHandle, targetHandle}.
- REMOVE_EDGE: params {source, target, sourceHandle, targetHandle}.
- UPDATE_INPUTS: target_id plus params.inputs, a non-empty list of {key, value}; every key must already exist on the node.

Current workflow graph:
%s

Respond with a single JSON object and nothing else, no prose and no code fences:
{"thought": "why these operations", "operations": [{"op_type": "...", "target_id": "...", "params": {...}}]}`

// Plan streams the planner model and returns the decoded operation plan.
// Raw model text is forwarded through emitChunk as it arrives so callers can
// surface planning progress.
func Plan(
	ctx context.Context,
	handle *llm.Handle,
	current graph.LogicalGraph,
	userPrompt string,
	history []*schema.Message,
	emitChunk func(string),
) (*PlanResponse, error) {
	graphJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("marshal current graph: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(builderSystemPrompt, string(graphJSON))),
	}
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(userPrompt))

	stream, err := handle.Stream(ctx, messages, nil, llm.ToolChoiceNone)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var raw strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk.Content == "" {
			continue
		}
		raw.WriteString(chunk.Content)
		if emitChunk != nil {
			emitChunk(chunk.Content)
		}
	}

	return ParsePlan(raw.String())
}
