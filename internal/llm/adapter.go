package llm

import (
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	logx "github.com/fastflow/nexus/pkg/logger"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

var (
	thinkSpanRE   = regexp.MustCompile(`(?is)<think>(.*?)</think>`)
	thinkMarkerRE = regexp.MustCompile(`(?i)</?think>`)
)

// EnsureToolCallIDs returns a message whose tool calls all carry a non-empty
// unique id, synthesizing ids for providers that omit them. Tool-call entries
// without a tool name cannot be dispatched and are dropped with a warning.
// The input message is not modified.
func EnsureToolCallIDs(msg *schema.Message) *schema.Message {
	if msg == nil || len(msg.ToolCalls) == 0 {
		return msg
	}

	patched := 0
	calls := make([]schema.ToolCall, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		if strings.TrimSpace(call.Function.Name) == "" {
			logx.Warn().Str("tool_call_id", call.ID).Msg("Dropping malformed tool call without name")
			continue
		}
		if strings.TrimSpace(call.ID) == "" {
			call.ID = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			patched++
		}
		calls = append(calls, call)
	}
	if patched > 0 {
		logx.Warn().Int("patched", patched).Msg("Synthesized missing tool call ids")
	}
	if patched == 0 && len(calls) == len(msg.ToolCalls) {
		return msg
	}

	out := *msg
	out.ToolCalls = calls
	return &out
}

// SplitReasoning separates in-band reasoning markup from the visible answer.
// With a matched marker pair, every wrapped span becomes reasoning and is
// stripped from the answer. With only a close marker, everything before it is
// reasoning; with only an open marker, everything after it is.
func SplitReasoning(content string) (answer, reasoning string) {
	lower := strings.ToLower(content)
	hasOpen := strings.Contains(lower, thinkOpenTag)
	hasClose := strings.Contains(lower, thinkCloseTag)
	if !hasOpen && !hasClose {
		return content, ""
	}

	if hasOpen && hasClose {
		var parts []string
		for _, match := range thinkSpanRE.FindAllStringSubmatch(content, -1) {
			if span := strings.TrimSpace(match[1]); span != "" {
				parts = append(parts, span)
			}
		}
		if len(parts) > 0 {
			answer = strings.TrimSpace(thinkMarkerRE.ReplaceAllString(thinkSpanRE.ReplaceAllString(content, ""), ""))
			return answer, strings.Join(parts, "\n")
		}
	}

	if hasClose && !hasOpen {
		idx := strings.Index(lower, thinkCloseTag)
		return strings.TrimSpace(content[idx+len(thinkCloseTag):]), strings.TrimSpace(content[:idx])
	}
	if hasOpen && !hasClose {
		idx := strings.Index(lower, thinkOpenTag)
		return strings.TrimSpace(content[:idx]), strings.TrimSpace(content[idx+len(thinkOpenTag):])
	}

	// Marker pair present but every span empty: just strip the markers.
	return strings.TrimSpace(thinkMarkerRE.ReplaceAllString(content, "")), ""
}

// SplitResponse applies SplitReasoning to a message and merges any
// provider-supplied out-of-band reasoning field.
func SplitResponse(msg *schema.Message) (answer, reasoning string) {
	if msg == nil {
		return "", ""
	}
	answer, reasoning = SplitReasoning(msg.Content)
	if provider := strings.TrimSpace(msg.ReasoningContent); provider != "" {
		if reasoning == "" {
			reasoning = provider
		} else {
			reasoning = provider + "\n" + reasoning
		}
	}
	return answer, reasoning
}
