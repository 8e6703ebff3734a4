package chat

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Execution phases reported on the event stream, in their natural order.
const (
	PhaseAnalyzeQuestion     = "analyze_question"
	PhaseExecuteTools        = "execute_tools"
	PhaseReviewAnswer        = "review_answer"
	PhaseGenerateFinalAnswer = "generate_final_answer"
)

// Event is one entry of the run's event stream. Consumers switch on Type and
// must ignore types they do not recognize.
type Event struct {
	Type           string `json:"type"`
	Message        string `json:"message,omitempty"`
	Phase          string `json:"phase,omitempty"`
	Agent          string `json:"agent,omitempty"`
	Content        string `json:"content,omitempty"`
	ToolName       string `json:"tool_name,omitempty"`
	Status         string `json:"status,omitempty"`
	ElapsedMS      *int64 `json:"elapsed_ms,omitempty"`
	Result         string `json:"result,omitempty"`
	FinalAnswerLen *int   `json:"final_answer_len,omitempty"`
	Data           any    `json:"data,omitempty"`
}

func runStartedEvent(agent string) Event {
	return Event{Type: "run.started", Message: "Processing user question", Agent: agent}
}

func runCompletedEvent(finalAnswerLen int) Event {
	return Event{Type: "run.completed", Message: "Run finished", FinalAnswerLen: &finalAnswerLen}
}

func answerDeltaEvent(delta string) Event {
	return Event{Type: "answer.delta", Content: delta}
}

func answerDoneEvent(content string) Event {
	return Event{Type: "answer.done", Content: content}
}

func answerResetEvent(message string) Event {
	return Event{Type: "answer.reset", Message: message}
}

func thinkingDeltaEvent(content string) Event {
	return Event{Type: "thinking.delta", Content: content}
}

func thinkingSummaryEvent(content string) Event {
	return Event{Type: "thinking.summary", Content: content}
}

// ErrorEvent is the fatal-error entry other layers (HTTP boundary, builder
// flow) emit onto the same stream.
func ErrorEvent(message string) Event {
	return Event{Type: "error", Message: message}
}

// PhaseTracker keeps the current phase and produces the paired
// phase.completed/phase.started events on every transition. Transitioning to
// the current phase produces nothing, so phases never repeat consecutively.
type PhaseTracker struct {
	current        string
	initialMessage string
}

func NewPhaseTracker(initialPhase, initialMessage string) *PhaseTracker {
	return &PhaseTracker{current: initialPhase, initialMessage: initialMessage}
}

func (t *PhaseTracker) StartEvents() []Event {
	return []Event{{Type: "phase.started", Phase: t.current, Message: t.initialMessage}}
}

func (t *PhaseTracker) TransitionTo(next, startMessage string) []Event {
	if next == t.current {
		return nil
	}
	previous := t.current
	t.current = next
	return []Event{
		{Type: "phase.completed", Phase: previous, Message: "Phase finished: " + previous},
		{Type: "phase.started", Phase: t.current, Message: startMessage},
	}
}

func (t *PhaseTracker) CompletedEvent() Event {
	return Event{Type: "phase.completed", Phase: t.current, Message: "Phase finished: " + t.current}
}

// ToolExecutionTracker records when each tool call started so the completion
// event can carry its elapsed time. Keyed by tool-call id, falling back to
// the tool name when the id is missing.
type ToolExecutionTracker struct {
	startedAt map[string]time.Time
}

func NewToolExecutionTracker() *ToolExecutionTracker {
	return &ToolExecutionTracker{startedAt: make(map[string]time.Time)}
}

func toolCallKey(id, name string) string {
	if key := strings.TrimSpace(id); key != "" {
		return key
	}
	return strings.TrimSpace(name)
}

func (t *ToolExecutionTracker) MarkStarted(call schema.ToolCall) {
	if key := toolCallKey(call.ID, call.Function.Name); key != "" {
		t.startedAt[key] = time.Now()
	}
}

func (t *ToolExecutionTracker) PopElapsedMS(toolCallID, toolName string) *int64 {
	key := toolCallKey(toolCallID, toolName)
	started, ok := t.startedAt[key]
	if key == "" || !ok {
		return nil
	}
	delete(t.startedAt, key)
	elapsed := time.Since(started).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return &elapsed
}

// IsToolResultFailed sniffs a tool result body for failure markers: an
// "error:" prefix, a traceback dump, or a JSON object carrying an error field
// or a failed status.
func IsToolResultFailed(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "error:") || strings.Contains(lowered, "traceback") {
		return true
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return false
	}
	if v, ok := payload["error"]; ok && v != nil && v != "" && v != false {
		return true
	}
	status, _ := payload["status"].(string)
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "error", "failed", "fail":
		return true
	}
	return false
}
