package builder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/fastflow/nexus/internal/graph"
)

// PlanResponse is the planner model's structured output: a short rationale
// plus the operation sequence to apply.
type PlanResponse struct {
	Thought    string            `json:"thought"`
	Operations []graph.Operation `json:"operations"`
}

// ParsePlan decodes a raw plan, repairing the JSON when the model fenced or
// truncated it, and validates every operation's parameter schema. A single
// malformed operation fails the whole plan; partial plans are never applied.
func ParsePlan(raw string) (*PlanResponse, error) {
	candidate := extractJSONObject(raw)

	var plan PlanResponse
	if err := json.Unmarshal([]byte(candidate), &plan); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil, fmt.Errorf("repair plan json: %w", repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &plan); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
	}

	for i, op := range plan.Operations {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return &plan, nil
}

func extractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
