package chat

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastflow/nexus/internal/tools"
)

func TestParseReviewVerdictPlainJSON(t *testing.T) {
	verdict, err := parseReviewVerdict(`{"status": "sufficient", "missing_info": [], "user_guidance": ""}`)
	require.NoError(t, err)
	assert.Equal(t, ReviewSufficient, verdict.Status)
	assert.NotNil(t, verdict.SuggestedToolArgs)
}

func TestParseReviewVerdictFencedWithProse(t *testing.T) {
	raw := "Here is my verdict:\n```json\n{\"status\": \"NEED_MORE_TOOLS\", \"missing_info\": [\" node list \", \"\"], \"suggested_tool_name\": \" get_full_workflow_graph \"}\n```"
	verdict, err := parseReviewVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, ReviewNeedMoreTools, verdict.Status)
	assert.Equal(t, []string{"node list"}, verdict.MissingInfo)
	assert.Equal(t, "get_full_workflow_graph", verdict.SuggestedToolName)
}

func TestParseReviewVerdictRepairsBrokenJSON(t *testing.T) {
	// Trailing comma and single quotes, the usual model damage.
	raw := `{'status': 'need_user_input', 'user_guidance': 'please share the graph',}`
	verdict, err := parseReviewVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, ReviewNeedUserInput, verdict.Status)
	assert.Equal(t, "please share the graph", verdict.UserGuidance)
}

func TestParseReviewVerdictUnknownStatus(t *testing.T) {
	_, err := parseReviewVerdict(`{"status": "maybe"}`)
	assert.Error(t, err)
}

func TestParseReviewVerdictGarbage(t *testing.T) {
	_, err := parseReviewVerdict("I think the answer is fine.")
	assert.Error(t, err)
}

func TestApplyVerdictDowngradesBudgetExhausted(t *testing.T) {
	verdict := ReviewVerdict{Status: ReviewNeedMoreTools, MissingInfo: []string{"node list"}}
	payload := reviewPayload{
		RemainingToolCallCount: 0,
		CandidateTools:         []toolSummary{{Name: "get_full_workflow_graph"}},
	}

	got := applyVerdictDowngrades(verdict, payload)
	assert.Equal(t, ReviewNeedUserInput, got.Status)
	assert.NotEmpty(t, got.UserGuidance)
	assert.Contains(t, got.UserGuidance, "node list")
}

func TestApplyVerdictDowngradesNoCandidates(t *testing.T) {
	verdict := ReviewVerdict{Status: ReviewNeedMoreTools}
	payload := reviewPayload{RemainingToolCallCount: 2}

	got := applyVerdictDowngrades(verdict, payload)
	assert.Equal(t, ReviewNeedUserInput, got.Status)
	assert.NotEmpty(t, got.UserGuidance)
}

func TestApplyVerdictDowngradesSuggestedToolNotCandidate(t *testing.T) {
	verdict := ReviewVerdict{Status: ReviewNeedMoreTools, SuggestedToolName: "get_workflow_meta"}
	payload := reviewPayload{
		RemainingToolCallCount: 2,
		CandidateTools:         []toolSummary{{Name: "get_full_workflow_graph"}},
	}

	got := applyVerdictDowngrades(verdict, payload)
	assert.Equal(t, ReviewNeedUserInput, got.Status)
	assert.NotEmpty(t, got.UserGuidance)
}

func TestApplyVerdictDowngradesKeepsValidVerdict(t *testing.T) {
	verdict := ReviewVerdict{Status: ReviewNeedMoreTools, SuggestedToolName: "get_full_workflow_graph"}
	payload := reviewPayload{
		RemainingToolCallCount: 1,
		CandidateTools:         []toolSummary{{Name: "get_full_workflow_graph"}},
	}

	got := applyVerdictDowngrades(verdict, payload)
	assert.Equal(t, ReviewNeedMoreTools, got.Status)
}

func TestApplyVerdictDowngradesIgnoresOtherStatuses(t *testing.T) {
	verdict := ReviewVerdict{Status: ReviewSufficient}
	got := applyVerdictDowngrades(verdict, reviewPayload{})
	assert.Equal(t, ReviewSufficient, got.Status)
}

func TestBuildReviewPayloadGathersEvidence(t *testing.T) {
	messages := []*schema.Message{
		schema.UserMessage("当前工作流有哪些节点"),
		assistantToolCall("get_full_workflow_graph"),
		toolResult("get_full_workflow_graph", `{"nodes": []}`),
		toolResult("get_workflow_meta", "   "),
	}
	entries := []tools.Entry{
		entry("get_full_workflow_graph", "full graph"),
		entry("get_workflow_meta", "meta"),
	}

	payload := buildReviewPayload("当前工作流有哪些节点", messages, "no nodes", "", entries)

	require.Len(t, payload.ToolResults, 1)
	assert.Equal(t, "get_full_workflow_graph", payload.ToolResults[0].ToolName)
	assert.Equal(t, 2, payload.UsedToolCallCount)
	assert.Equal(t, 1, payload.RemainingToolCallCount)
	assert.Equal(t, MaxToolCallsPerQuestion, payload.MaxToolCallCount)

	// Executed tools never reappear as candidates.
	require.Len(t, payload.CandidateTools, 0)
	assert.Equal(t, "no nodes", payload.CandidateAnswer)
}

func TestBuildNeedUserInputMessageDefaults(t *testing.T) {
	assert.Equal(t,
		"I cannot reach a reliable conclusion yet. Missing: key context information. Please provide this information and I will continue.",
		buildNeedUserInputMessage(nil, ""))

	msg := buildNeedUserInputMessage([]string{"node list", " edge count "}, "")
	assert.Contains(t, msg, "node list; edge count")

	assert.Equal(t, "custom guidance", buildNeedUserInputMessage([]string{"x"}, "custom guidance"))
}

func TestBuildReviewGuidanceIncludesSuggestion(t *testing.T) {
	got := buildReviewGuidance([]string{"node list"}, "get_full_workflow_graph", map[string]any{"depth": 1})
	assert.Contains(t, got, "- node list")
	assert.Contains(t, got, "Try this tool first: get_full_workflow_graph")
	assert.Contains(t, got, `"depth":1`)
}
