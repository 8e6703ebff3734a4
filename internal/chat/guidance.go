package chat

import (
	"encoding/json"
	"strings"
)

// buildReviewGuidance turns a need_more_tools verdict into the internal
// instruction injected as a one-shot system message for the next generate
// round. It is never shown to the user and never persisted.
func buildReviewGuidance(missingInfo []string, suggestedToolName string, suggestedToolArgs map[string]any) string {
	lines := []string{
		"Your previous answer does not yet satisfy the user's question. Gather the missing evidence before answering again.",
		"If the available tools cannot supply the key evidence, tell the user what is missing and ask them to provide it.",
	}

	var bullets []string
	for _, item := range missingInfo {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			bullets = append(bullets, "- "+trimmed)
		}
	}
	if len(bullets) > 0 {
		lines = append(lines, "Currently missing:")
		lines = append(lines, bullets...)
	}

	if suggestedToolName != "" {
		args := suggestedToolArgs
		if args == nil {
			args = map[string]any{}
		}
		argsJSON, err := json.Marshal(args)
		if err != nil {
			argsJSON = []byte("{}")
		}
		lines = append(lines, "Try this tool first: "+suggestedToolName+", arguments: "+string(argsJSON))
	}
	return strings.Join(lines, "\n")
}

// buildNeedUserInputMessage is the user-facing fallback when evidence cannot
// be completed with tools. A reviewer-provided guidance text wins over the
// synthesized default.
func buildNeedUserInputMessage(missingInfo []string, userGuidance string) string {
	if userGuidance != "" {
		return userGuidance
	}

	var parts []string
	for _, item := range missingInfo {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	missingText := strings.Join(parts, "; ")
	if missingText == "" {
		missingText = "key context information"
	}
	return "I cannot reach a reliable conclusion yet. Missing: " + missingText + ". Please provide this information and I will continue."
}
