package chat

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastflow/nexus/internal/llm"
	"github.com/fastflow/nexus/internal/tools"
)

func entry(name, desc string) tools.Entry {
	return tools.Entry{Info: &schema.ToolInfo{Name: name, Desc: desc}}
}

func toolResult(name, content string) *schema.Message {
	return schema.ToolMessage(content, "call_"+name, schema.WithToolName(name))
}

func assistantToolCall(names ...string) *schema.Message {
	calls := make([]schema.ToolCall, 0, len(names))
	for _, name := range names {
		calls = append(calls, schema.ToolCall{
			ID:       "call_" + name,
			Function: schema.FunctionCall{Name: name, Arguments: "{}"},
		})
	}
	return schema.AssistantMessage("", calls)
}

func TestRequiresWorkflowGraphTools(t *testing.T) {
	tests := []struct {
		prompt string
		want   bool
	}{
		{"What nodes does the workflow have?", true},
		{"当前工作流有哪些节点？", true},
		{"这个工作流是干什么的", true},
		{"画个流程图看看", true},
		{"What is the weather today?", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiresWorkflowGraphTools(tt.prompt), "prompt: %q", tt.prompt)
	}
}

func TestResolveToolChoiceBudgetExhausted(t *testing.T) {
	messages := []*schema.Message{
		toolResult("get_full_workflow_graph", "graph a"),
		toolResult("get_workflow_meta", "meta b"),
		toolResult("get_current_time", "time c"),
	}
	got := ResolveToolChoice("当前工作流有哪些节点", messages)
	assert.Equal(t, llm.ToolChoiceNone, got)
}

func TestNoNewEvidenceStreakCountsDuplicates(t *testing.T) {
	messages := []*schema.Message{
		toolResult("get_full_workflow_graph", "the same payload"),
		toolResult("get_workflow_meta", "the same payload"),
	}
	assert.Equal(t, 1, noNewEvidenceStreak(messages))

	messages = append(messages, toolResult("get_workflow_node_info", "the same payload"))
	assert.Equal(t, 2, noNewEvidenceStreak(messages))
}

func TestResolveToolChoiceEmptyResultsCountTowardStreak(t *testing.T) {
	messages := []*schema.Message{
		toolResult("get_full_workflow_graph", ""),
		toolResult("get_workflow_meta", "   "),
	}
	assert.Equal(t, llm.ToolChoiceNone, ResolveToolChoice("workflow question", messages))
}

func TestResolveToolChoiceAutoAfterFirstResult(t *testing.T) {
	messages := []*schema.Message{
		toolResult("get_full_workflow_graph", "fresh evidence"),
	}
	assert.Equal(t, llm.ToolChoiceAuto, ResolveToolChoice("当前工作流有哪些节点", messages))
}

func TestResolveToolChoiceRequiredOnGraphPrompt(t *testing.T) {
	assert.Equal(t, llm.ToolChoiceRequired, ResolveToolChoice("describe the workflow graph", nil))
}

func TestResolveToolChoiceDefaultAuto(t *testing.T) {
	assert.Equal(t, llm.ToolChoiceAuto, ResolveToolChoice("hello there", nil))
}

func TestNoNewEvidenceStreakResetsOnFreshContent(t *testing.T) {
	messages := []*schema.Message{
		toolResult("a", "dup"),
		toolResult("b", "dup"),
		toolResult("c", "brand new"),
	}
	assert.Equal(t, 0, noNewEvidenceStreak(messages))
}

func TestSelectToolCandidatesRanksByRelevance(t *testing.T) {
	entries := []tools.Entry{
		entry("get_current_time", "Returns the current time in a timezone"),
		entry("get_workflow_meta", "Returns the workflow name and description"),
		entry("get_full_workflow_graph", "Returns the full workflow topology"),
	}

	got := SelectToolCandidates("这个工作流的名称和描述是什么", nil, entries, "")
	require.Len(t, got, 3)
	assert.Equal(t, "get_workflow_meta", got[0].Info.Name)
}

func TestSelectToolCandidatesFocusTextShiftsRanking(t *testing.T) {
	entries := []tools.Entry{
		entry("get_workflow_meta", "Returns the workflow name and description"),
		entry("get_current_timestamp", "Returns the unix timestamp"),
	}

	got := SelectToolCandidates("hi", nil, entries, "need the unix timestamp in milliseconds")
	require.NotEmpty(t, got)
	assert.Equal(t, "get_current_timestamp", got[0].Info.Name)
}

func TestSelectToolCandidatesSkipsCalledTools(t *testing.T) {
	entries := []tools.Entry{
		entry("get_full_workflow_graph", "full graph"),
		entry("get_workflow_meta", "meta"),
	}
	messages := []*schema.Message{assistantToolCall("get_full_workflow_graph")}

	got := SelectToolCandidates("workflow", messages, entries, "")
	require.Len(t, got, 1)
	assert.Equal(t, "get_workflow_meta", got[0].Info.Name)
}

func TestSelectToolCandidatesFallsBackWhenAllCalled(t *testing.T) {
	entries := []tools.Entry{
		entry("get_full_workflow_graph", "full graph"),
		entry("get_workflow_meta", "meta"),
	}
	messages := []*schema.Message{assistantToolCall("get_full_workflow_graph", "get_workflow_meta")}

	got := SelectToolCandidates("workflow", messages, entries, "")
	assert.Len(t, got, 2)
}

func TestFilterExecutedTools(t *testing.T) {
	entries := []tools.Entry{
		entry("get_full_workflow_graph", "full graph"),
		entry("get_workflow_meta", "meta"),
	}
	messages := []*schema.Message{toolResult("get_workflow_meta", "result")}

	got := FilterExecutedTools(messages, entries)
	require.Len(t, got, 1)
	assert.Equal(t, "get_full_workflow_graph", got[0].Info.Name)
}
