package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/fastflow/nexus/internal/agent/model"
	"github.com/fastflow/nexus/internal/llm"
	"github.com/fastflow/nexus/internal/session"
	"github.com/fastflow/nexus/internal/tools"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// loop states
type state string

const (
	stateGenerate     state = "generate"
	stateExecuteTools state = "execute_tools"
	stateReview       state = "review"
	stateEnd          state = "end"
)

// Agent runs the question-answering loop: generate a response, execute any
// requested tools, review answer sufficiency, repeat until a terminal state.
type Agent struct {
	factory  *llm.Factory
	sessions session.Store
	cache    *tools.ContextCache
}

func NewAgent(factory *llm.Factory, sessions session.Store, cache *tools.ContextCache) *Agent {
	return &Agent{factory: factory, sessions: sessions, cache: cache}
}

// run is the mutable state of one request. It lives for exactly one Chat
// call and is never shared.
type run struct {
	reqCtx  *model.ChatRequestContext
	handle  *llm.Handle
	entries []tools.Entry
	reg     *tools.Registry
	emit    func(Event)

	messages       []*schema.Message
	reviewGuidance string
	forceToolCall  bool
	pendingReview  bool
	reviewCount    int

	answer          strings.Builder
	phases          *PhaseTracker
	toolTracker     *ToolExecutionTracker
	thinkingEmitted bool
	reviewStarted   bool
}

// Chat processes one streamed chat request, emitting events as they occur.
// The final answer is appended to the session transcript together with the
// user prompt; candidate answers discarded by review are never persisted.
func (a *Agent) Chat(ctx context.Context, reqCtx *model.ChatRequestContext, emit func(Event)) error {
	handle, err := a.factory.Handle(ctx, reqCtx.ModelConfigID, reqCtx.AuthToken)
	if err != nil {
		return err
	}

	entries := tools.BuildWorkflowTools(a.cache, reqCtx)
	entries = append(entries, tools.BuildMCPTools(a.cache, reqCtx)...)
	entries = append(entries, tools.BuildTimeTools()...)
	logx.Info().
		Int("tools", len(entries)).
		Str("session_id", reqCtx.SessionID).
		Msg("Tool set initialised")

	history, err := a.sessions.Load(ctx, reqCtx.SessionID)
	if err != nil {
		return err
	}

	r := &run{
		reqCtx:      reqCtx,
		handle:      handle,
		entries:     entries,
		reg:         tools.NewRegistry(entries...),
		emit:        emit,
		phases:      NewPhaseTracker(PhaseAnalyzeQuestion, "Analysing the user question"),
		toolTracker: NewToolExecutionTracker(),
	}
	r.messages = append(r.messages, schema.SystemMessage(chatSystemPrompt))
	r.messages = append(r.messages, history...)
	r.messages = append(r.messages, schema.UserMessage(reqCtx.UserPrompt))

	emit(runStartedEvent("chat"))
	for _, ev := range r.phases.StartEvents() {
		emit(ev)
	}

	current := stateGenerate
	for current != stateEnd {
		switch current {
		case stateGenerate:
			current, err = a.stepGenerate(ctx, r)
		case stateExecuteTools:
			current, err = a.stepExecuteTools(ctx, r)
		case stateReview:
			current = a.stepReview(ctx, r)
		}
		if err != nil {
			return err
		}
	}

	a.persist(ctx, r)

	finalAnswer := strings.TrimSpace(r.answer.String())
	emit(r.phases.CompletedEvent())
	emit(answerDoneEvent(finalAnswer))
	emit(runCompletedEvent(len(finalAnswer)))
	logx.Info().
		Int("final_answer_len", len(finalAnswer)).
		Str("session_id", reqCtx.SessionID).
		Msg("Run finished")
	return nil
}

// stepGenerate invokes the model with the ranked candidate tool set, streams
// its output, and routes to tool execution, review, or the end state.
func (a *Agent) stepGenerate(ctx context.Context, r *run) (state, error) {
	candidates := SelectToolCandidates(r.reqCtx.UserPrompt, r.messages, r.entries, r.reviewGuidance)
	candidates = FilterExecutedTools(r.messages, candidates)

	choice := ResolveToolChoice(r.reqCtx.UserPrompt, r.messages)
	if r.forceToolCall && choice != llm.ToolChoiceNone {
		choice = llm.ToolChoiceRequired
	}
	logx.Info().
		Int("candidates", len(candidates)).
		Str("tool_choice", string(choice)).
		Msg("Model call prepared")

	llmMessages := r.messages
	if r.reviewGuidance != "" {
		// Review guidance shapes only this round; it is never persisted.
		llmMessages = append(append([]*schema.Message{}, r.messages...), schema.SystemMessage(r.reviewGuidance))
	}

	shouldReview := RequiresWorkflowGraphTools(r.reqCtx.UserPrompt) || toolMessageCount(r.messages) > 0

	stream, err := r.handle.Stream(ctx, llmMessages, tools.Infos(candidates), choice)
	if err != nil {
		return stateEnd, err
	}
	defer stream.Close()

	var chunks []*schema.Message
	var streamedText strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stateEnd, err
		}
		chunks = append(chunks, chunk)

		if chunk.ReasoningContent != "" {
			r.thinkingEmitted = true
			r.emit(thinkingDeltaEvent(chunk.ReasoningContent))
		}
		if chunk.Content != "" {
			for _, ev := range r.phases.TransitionTo(PhaseGenerateFinalAnswer, "Generating the final answer") {
				r.emit(ev)
			}
			streamedText.WriteString(chunk.Content)
			r.answer.WriteString(chunk.Content)
			r.emit(answerDeltaEvent(chunk.Content))
		}
	}

	generated := schema.AssistantMessage("", nil)
	if len(chunks) > 0 {
		merged, err := schema.ConcatMessages(chunks)
		if err != nil {
			return stateEnd, err
		}
		generated = merged
	}
	generated = llm.EnsureToolCallIDs(generated)

	answerText, reasoning := llm.SplitResponse(generated)
	if answerText != generated.Content || reasoning != "" {
		rebuilt := *generated
		rebuilt.Content = answerText
		rebuilt.ReasoningContent = reasoning
		generated = &rebuilt
	}
	if reasoning != "" && !r.thinkingEmitted {
		r.emit(thinkingSummaryEvent(reasoning))
	}
	// In-band reasoning markers were streamed raw; replace the displayed
	// buffer with the cleaned visible answer.
	if len(generated.ToolCalls) == 0 && answerText != streamedText.String() && streamedText.Len() > 0 {
		r.resetAnswer("Cleaning up the streamed answer")
		a.emitAnswer(r, answerText)
	}

	r.messages = append(r.messages, generated)
	r.reviewGuidance = ""
	r.forceToolCall = false

	if len(generated.ToolCalls) > 0 {
		logx.Info().Int("tool_calls", len(generated.ToolCalls)).Msg("Model requested tool calls")
		return stateExecuteTools, nil
	}
	if shouldReview {
		logx.Info().Int("content_len", len(answerText)).Msg("Candidate answer pending sufficiency review")
		r.pendingReview = true
		return stateReview, nil
	}
	logx.Info().Int("content_len", len(answerText)).Msg("Final answer generated")
	return stateEnd, nil
}

// stepExecuteTools runs every requested tool call. Calls within one round
// are independent and dispatched concurrently, but results are appended in
// request order so tool_call_id correlation stays deterministic.
func (a *Agent) stepExecuteTools(ctx context.Context, r *run) (state, error) {
	last := r.messages[len(r.messages)-1]
	calls := last.ToolCalls

	for _, ev := range r.phases.TransitionTo(PhaseExecuteTools, "Executing tool calls") {
		r.emit(ev)
	}
	for _, call := range calls {
		r.toolTracker.MarkStarted(call)
		r.emit(Event{Type: "tool.selected", ToolName: call.Function.Name, Message: "Model selected tool: " + call.Function.Name})
		r.emit(Event{Type: "tool.started", ToolName: call.Function.Name, Message: "Executing tool: " + call.Function.Name})
	}

	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = r.reg.Execute(gctx, call.Function.Name, call.Function.Arguments)
			return nil
		})
	}
	// Execute reports failures in the result body, never as an error.
	_ = g.Wait()

	for i, call := range calls {
		content := results[i]
		failed := IsToolResultFailed(content)
		elapsed := r.toolTracker.PopElapsedMS(call.ID, call.Function.Name)

		status := "completed"
		message := "Tool finished: " + call.Function.Name
		eventType := "tool.completed"
		if failed {
			status = "failed"
			message = "Tool failed: " + call.Function.Name
			eventType = "tool.failed"
		}
		r.emit(Event{
			Type:      eventType,
			ToolName:  call.Function.Name,
			Status:    status,
			ElapsedMS: elapsed,
			Result:    content,
			Message:   message,
		})
		r.messages = append(r.messages, schema.ToolMessage(content, call.ID, schema.WithToolName(call.Function.Name)))
	}
	return stateGenerate, nil
}

// stepReview gates the pending candidate answer. Sufficient releases it,
// need_more_tools loops back to generate with guidance and a forced tool
// call, need_user_input replaces the candidate with a user-facing request
// for more information. Hitting the round ceiling forces the latter.
func (a *Agent) stepReview(ctx context.Context, r *run) state {
	if !r.pendingReview {
		return stateEnd
	}
	r.pendingReview = false

	if r.reviewCount >= MaxReviewRounds {
		logx.Warn().Int("review_round", r.reviewCount).Msg("Review round ceiling reached, asking user for input")
		guidance := buildNeedUserInputMessage(nil, "")
		r.resetAnswer("Candidate answer did not pass review, asking for more information")
		a.emitAnswer(r, guidance)
		r.messages = append(r.messages, schema.AssistantMessage(guidance, nil))
		return stateEnd
	}

	for _, ev := range r.phases.TransitionTo(PhaseReviewAnswer, "Reviewing answer sufficiency") {
		r.emit(ev)
	}
	if !r.reviewStarted {
		r.reviewStarted = true
		r.emit(Event{Type: "review.started", Message: "Checking whether the answer satisfies the question"})
	}

	candidate := r.messages[len(r.messages)-1]
	payload := buildReviewPayload(r.reqCtx.UserPrompt, r.messages, candidate.Content, "", r.entries)
	verdict := runReview(ctx, r.handle, payload)
	r.reviewCount++

	switch verdict.Status {
	case ReviewSufficient:
		logx.Info().Int("review_round", r.reviewCount).Msg("Review verdict: evidence sufficient")
		return stateEnd

	case ReviewNeedMoreTools:
		logx.Info().
			Str("suggested_tool", verdict.SuggestedToolName).
			Int("review_round", r.reviewCount).
			Msg("Review verdict: more evidence needed")
		r.resetAnswer("Candidate answer did not pass review, gathering more evidence")
		r.reviewGuidance = buildReviewGuidance(verdict.MissingInfo, verdict.SuggestedToolName, verdict.SuggestedToolArgs)
		r.forceToolCall = true
		return stateGenerate

	default:
		logx.Info().
			Int("missing_info", len(verdict.MissingInfo)).
			Int("review_round", r.reviewCount).
			Msg("Review verdict: tools cannot close the gap, asking user")
		guidance := buildNeedUserInputMessage(verdict.MissingInfo, verdict.UserGuidance)
		r.resetAnswer("Candidate answer did not pass review, asking for more information")
		a.emitAnswer(r, guidance)
		r.messages = append(r.messages, schema.AssistantMessage(guidance, nil))
		return stateEnd
	}
}

// resetAnswer discards the streamed candidate from the display buffer.
func (r *run) resetAnswer(message string) {
	r.answer.Reset()
	r.emit(answerResetEvent(message))
}

// emitAnswer streams a full replacement answer as one delta.
func (a *Agent) emitAnswer(r *run, text string) {
	if text == "" {
		return
	}
	for _, ev := range r.phases.TransitionTo(PhaseGenerateFinalAnswer, "Generating the final answer") {
		r.emit(ev)
	}
	r.answer.WriteString(text)
	r.emit(answerDeltaEvent(text))
}

// persist writes the user prompt and, when present, the final answer to the
// session transcript. Intermediate candidates never reach history.
func (a *Agent) persist(ctx context.Context, r *run) {
	if err := a.sessions.Append(ctx, r.reqCtx.SessionID, schema.UserMessage(r.reqCtx.UserPrompt)); err != nil {
		logx.Warn().Err(err).Str("session_id", r.reqCtx.SessionID).Msg("Failed to persist user message")
	}
	finalAnswer := strings.TrimSpace(r.answer.String())
	if finalAnswer == "" {
		return
	}
	if err := a.sessions.Append(ctx, r.reqCtx.SessionID, schema.AssistantMessage(finalAnswer, nil)); err != nil {
		logx.Warn().Err(err).Str("session_id", r.reqCtx.SessionID).Msg("Failed to persist final answer")
	}
}
