package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/fastflow/nexus/internal/llm"
	"github.com/fastflow/nexus/internal/tools"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// MaxReviewRounds caps answer-sufficiency review invocations per question.
// It is separate from the tool budget and exists purely to guarantee
// termination when the review loop fails to converge.
const MaxReviewRounds = 3

// ReviewStatus is the reviewer's classification of a candidate answer.
type ReviewStatus string

const (
	ReviewSufficient    ReviewStatus = "sufficient"
	ReviewNeedMoreTools ReviewStatus = "need_more_tools"
	ReviewNeedUserInput ReviewStatus = "need_user_input"
)

// ReviewVerdict is the reviewer's structured output.
type ReviewVerdict struct {
	Status            ReviewStatus   `json:"status"`
	MissingInfo       []string       `json:"missing_info"`
	SuggestedToolName string         `json:"suggested_tool_name"`
	SuggestedToolArgs map[string]any `json:"suggested_tool_args"`
	UserGuidance      string         `json:"user_guidance"`
}

type toolEvidence struct {
	ToolName   string `json:"tool_name"`
	ToolResult string `json:"tool_result"`
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// reviewPayload is the JSON document the reviewer model judges. The budget
// counters are included so the reviewer does not demand tools that can no
// longer run.
type reviewPayload struct {
	UserPrompt             string         `json:"user_prompt"`
	CandidateAnswer        string         `json:"candidate_answer"`
	ToolResults            []toolEvidence `json:"tool_results"`
	CandidateTools         []toolSummary  `json:"candidate_tools"`
	UsedToolCallCount      int            `json:"used_tool_call_count"`
	RemainingToolCallCount int            `json:"remaining_tool_call_count"`
	MaxToolCallCount       int            `json:"max_tool_call_count"`
}

// buildReviewPayload gathers the verifiable evidence for the reviewer: the
// question, the candidate answer, every non-empty tool result, and the
// relevance-filtered not-yet-executed candidate tools.
func buildReviewPayload(
	userPrompt string,
	messages []*schema.Message,
	candidateAnswer string,
	focusText string,
	entries []tools.Entry,
) reviewPayload {
	results := make([]toolEvidence, 0)
	for _, m := range messages {
		if m == nil || m.Role != schema.Tool {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		results = append(results, toolEvidence{ToolName: m.ToolName, ToolResult: content})
	}

	candidates := SelectToolCandidates(userPrompt, messages, entries, focusText)
	candidates = FilterExecutedTools(messages, candidates)
	summaries := make([]toolSummary, 0, len(candidates))
	for _, entry := range candidates {
		summaries = append(summaries, toolSummary{Name: entry.Info.Name, Description: entry.Info.Desc})
	}

	used := toolMessageCount(messages)
	remaining := MaxToolCallsPerQuestion - used
	if remaining < 0 {
		remaining = 0
	}
	return reviewPayload{
		UserPrompt:             userPrompt,
		CandidateAnswer:        candidateAnswer,
		ToolResults:            results,
		CandidateTools:         summaries,
		UsedToolCallCount:      used,
		RemainingToolCallCount: remaining,
		MaxToolCallCount:       MaxToolCallsPerQuestion,
	}
}

// parseReviewVerdict decodes the reviewer's raw output. Model JSON arrives
// fenced, truncated, or wrapped in prose often enough that the text is
// repaired before decoding. An unusable verdict is an error; the caller
// fails closed.
func parseReviewVerdict(raw string) (ReviewVerdict, error) {
	var verdict ReviewVerdict

	candidate := extractJSONObject(raw)
	if err := json.Unmarshal([]byte(candidate), &verdict); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return ReviewVerdict{}, repairErr
		}
		if err := json.Unmarshal([]byte(repaired), &verdict); err != nil {
			return ReviewVerdict{}, err
		}
	}

	verdict.Status = ReviewStatus(strings.TrimSpace(strings.ToLower(string(verdict.Status))))
	switch verdict.Status {
	case ReviewSufficient, ReviewNeedMoreTools, ReviewNeedUserInput:
	default:
		return ReviewVerdict{}, &json.UnmarshalTypeError{Value: string(verdict.Status)}
	}

	cleaned := verdict.MissingInfo[:0]
	for _, item := range verdict.MissingInfo {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	verdict.MissingInfo = cleaned
	verdict.SuggestedToolName = strings.TrimSpace(verdict.SuggestedToolName)
	verdict.UserGuidance = strings.TrimSpace(verdict.UserGuidance)
	if verdict.SuggestedToolArgs == nil {
		verdict.SuggestedToolArgs = map[string]any{}
	}
	return verdict, nil
}

// extractJSONObject strips code fences and surrounding prose, keeping the
// outermost object span.
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

// applyVerdictDowngrades enforces the deterministic post-processing rules:
// need_more_tools is downgraded to need_user_input when the budget is gone,
// no candidate tools remain, or the suggested tool is not in the candidate
// set. A downgraded verdict always carries a non-empty user guidance.
func applyVerdictDowngrades(verdict ReviewVerdict, payload reviewPayload) ReviewVerdict {
	if verdict.Status != ReviewNeedMoreTools {
		return verdict
	}

	downgrade := false
	switch {
	case payload.RemainingToolCallCount <= 0:
		downgrade = true
	case len(payload.CandidateTools) == 0:
		downgrade = true
	default:
		found := false
		for _, tool := range payload.CandidateTools {
			if tool.Name == verdict.SuggestedToolName {
				found = true
				break
			}
		}
		downgrade = !found
	}

	if downgrade {
		verdict.Status = ReviewNeedUserInput
		if verdict.UserGuidance == "" {
			verdict.UserGuidance = buildNeedUserInputMessage(verdict.MissingInfo, "")
		}
	}
	return verdict
}

// runReview invokes the reviewer model and decodes its verdict. Any failure
// yields need_user_input: a broken reviewer must never release unverified
// content as sufficient.
func runReview(ctx context.Context, handle *llm.Handle, payload reviewPayload) ReviewVerdict {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to marshal review payload")
		return ReviewVerdict{Status: ReviewNeedUserInput, SuggestedToolArgs: map[string]any{}}
	}

	resp, err := handle.Generate(ctx, []*schema.Message{
		schema.SystemMessage(reviewSystemPrompt),
		schema.UserMessage(string(payloadJSON)),
	})
	if err != nil {
		logx.Error().Err(err).Msg("Reviewer model call failed")
		return ReviewVerdict{Status: ReviewNeedUserInput, SuggestedToolArgs: map[string]any{}}
	}

	answer, _ := llm.SplitResponse(resp)
	verdict, err := parseReviewVerdict(answer)
	if err != nil {
		logx.Error().Err(err).Str("raw", answer).Msg("Failed to parse review verdict")
		return ReviewVerdict{Status: ReviewNeedUserInput, SuggestedToolArgs: map[string]any{}}
	}
	return applyVerdictDowngrades(verdict, payload)
}
