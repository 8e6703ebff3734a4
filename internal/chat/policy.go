package chat

import (
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/fastflow/nexus/internal/llm"
	"github.com/fastflow/nexus/internal/tools"
	logx "github.com/fastflow/nexus/pkg/logger"
)

const (
	// MaxToolCallsPerQuestion caps tool-result messages per user question.
	// It bounds tool execution only, not review rounds.
	MaxToolCallsPerQuestion = 3
	// NoNewEvidenceStopStreak stops tool use after this many consecutive
	// tool results that brought nothing new.
	NoNewEvidenceStopStreak = 2
)

// Prompts containing any of these imply the question depends on the current
// workflow graph and force a tool call on the first round. Bilingual on
// purpose: the product serves both Chinese and English users.
var workflowContextKeywords = []string{
	"当前工作流",
	"这个工作流",
	"流程图",
	"编排图",
	"节点",
	"连线",
	"边",
	"拓扑",
	"node",
	"nodes",
	"edge",
	"edges",
	"workflow",
	"graph",
	"mcp",
	"mcp工具",
	"mcp 工具",
	"toolset",
}

// Per-tool keyword tables for coarse relevance scoring. This is not intent
// classification, just a ranking signal.
var toolKeywords = map[string][]string{
	"get_workflow_meta":         {"名称", "描述", "简介", "用途", "干啥", "做什么", "name", "description"},
	"get_full_workflow_graph":   {"完整", "全量", "全部", "流程", "连线", "拓扑", "上下游", "structure", "topology"},
	"find_workflow_graph_nodes": {"查找", "搜索", "定位", "节点", "find", "search"},
	"get_workflow_node_info":    {"节点详情", "节点信息", "某个节点", "node"},
	"get_toolset_tools":         {"mcp", "mcp工具", "mcp 工具", "toolset", "工具清单", "工具列表", "tool list", "tools"},
	"get_tools_node_mcp_tools":  {"mcp", "mcp工具", "mcp 工具", "toolset", "下挂", "调度", "tool list", "tools"},
	"get_current_time":          {"当前时间", "现在时间", "几点", "日期", "时间", "format", "格式", "时区", "timezone"},
	"get_current_timestamp":     {"时间戳", "timestamp", "unix", "毫秒", "秒", "时区", "timezone"},
}

var fallbackDomainTokens = []string{"工作流", "节点", "工具", "mcp", "描述", "名称", "连线", "workflow", "node", "tool"}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// toolMessageCount counts tool-result messages accumulated for this question.
func toolMessageCount(messages []*schema.Message) int {
	n := 0
	for _, m := range messages {
		if m != nil && m.Role == schema.Tool {
			n++
		}
	}
	return n
}

// calledToolNames collects the tool names the model has already requested,
// in request order.
func calledToolNames(messages []*schema.Message) map[string]struct{} {
	called := make(map[string]struct{})
	for _, m := range messages {
		if m == nil || m.Role != schema.Assistant {
			continue
		}
		for _, call := range m.ToolCalls {
			if name := strings.TrimSpace(call.Function.Name); name != "" {
				called[name] = struct{}{}
			}
		}
	}
	return called
}

// noNewEvidenceStreak counts the trailing run of tool results that added no
// evidence: empty content, or content identical to an earlier result.
func noNewEvidenceStreak(messages []*schema.Message) int {
	seen := make(map[string]struct{})
	streak := 0
	for _, m := range messages {
		if m == nil || m.Role != schema.Tool {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			streak++
			continue
		}
		if _, dup := seen[content]; dup {
			streak++
			continue
		}
		seen[content] = struct{}{}
		streak = 0
	}
	return streak
}

// RequiresWorkflowGraphTools reports whether the user prompt explicitly
// depends on the current workflow graph context.
func RequiresWorkflowGraphTools(userPrompt string) bool {
	prompt := normalizeText(userPrompt)
	if prompt == "" {
		return false
	}
	for _, keyword := range workflowContextKeywords {
		if strings.Contains(prompt, keyword) {
			return true
		}
	}
	return false
}

func scoreToolRelevance(entry tools.Entry, queryText string) int {
	if queryText == "" {
		return 0
	}

	name := entry.Info.Name
	description := normalizeText(entry.Info.Desc)
	score := 0

	if name != "" && strings.Contains(queryText, strings.ToLower(name)) {
		score += 10
	}
	for _, keyword := range toolKeywords[name] {
		if strings.Contains(queryText, normalizeText(keyword)) {
			score += 3
		}
	}
	for _, token := range fallbackDomainTokens {
		normalized := normalizeText(token)
		if strings.Contains(queryText, normalized) && strings.Contains(description, normalized) {
			score++
		}
	}
	return score
}

// SelectToolCandidates ranks tools by relevance to the prompt plus any focus
// text (e.g. the reviewer's missing-info notes) and removes tools the model
// already called. If the no-repeat filter would empty the set, the full
// ranked list is returned instead of a dead end.
func SelectToolCandidates(userPrompt string, messages []*schema.Message, entries []tools.Entry, focusText string) []tools.Entry {
	if len(entries) == 0 {
		return nil
	}

	queryText := normalizeText(userPrompt + " " + focusText)
	ranked := make([]tools.Entry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scoreToolRelevance(ranked[i], queryText) > scoreToolRelevance(ranked[j], queryText)
	})

	called := calledToolNames(messages)
	filtered := make([]tools.Entry, 0, len(ranked))
	for _, entry := range ranked {
		if _, done := called[entry.Info.Name]; done {
			continue
		}
		filtered = append(filtered, entry)
	}
	if len(filtered) == 0 {
		return ranked
	}
	return filtered
}

// FilterExecutedTools removes tools that already produced a tool-result
// message, keyed by the result's tool name.
func FilterExecutedTools(messages []*schema.Message, entries []tools.Entry) []tools.Entry {
	used := make(map[string]struct{})
	for _, m := range messages {
		if m == nil || m.Role != schema.Tool {
			continue
		}
		if name := strings.TrimSpace(m.ToolName); name != "" {
			used[name] = struct{}{}
		}
	}

	kept := make([]tools.Entry, 0, len(entries))
	for _, entry := range entries {
		if _, done := used[entry.Info.Name]; done {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// ResolveToolChoice computes the tool-choice mode for the next model call.
//
// Stop rules: budget exhausted or evidence stalled means none. Base rules:
// auto once any tool result exists, required on the first round when the
// prompt needs graph context, auto otherwise.
func ResolveToolChoice(userPrompt string, messages []*schema.Message) llm.ToolChoice {
	used := toolMessageCount(messages)
	if used >= MaxToolCallsPerQuestion {
		logx.Info().
			Int("used", used).
			Int("budget", MaxToolCallsPerQuestion).
			Msg("Tool policy: stop, budget exhausted")
		return llm.ToolChoiceNone
	}

	if streak := noNewEvidenceStreak(messages); streak >= NoNewEvidenceStopStreak {
		logx.Info().
			Int("streak", streak).
			Int("limit", NoNewEvidenceStopStreak).
			Msg("Tool policy: stop, no new evidence")
		return llm.ToolChoiceNone
	}

	if used > 0 {
		logx.Info().Msg("Tool policy: auto, tool results already present")
		return llm.ToolChoiceAuto
	}

	if RequiresWorkflowGraphTools(userPrompt) {
		logx.Info().Msg("Tool policy: required, prompt depends on workflow graph")
		return llm.ToolChoiceRequired
	}

	logx.Info().Msg("Tool policy: auto")
	return llm.ToolChoiceAuto
}
