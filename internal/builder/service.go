package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fastflow/nexus/internal/agent/model"
	"github.com/fastflow/nexus/internal/chat"
	"github.com/fastflow/nexus/internal/graph"
	"github.com/fastflow/nexus/internal/llm"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// DiffSummary reports what an applied plan changed.
type DiffSummary struct {
	AppliedOps int `json:"applied_ops"`
	TotalOps   int `json:"total_ops"`
	NodeCount  int `json:"node_count"`
	EdgeCount  int `json:"edge_count"`
}

// Service turns a user instruction into a validated graph mutation: plan,
// apply, validate, publish. A graph is published only when every operation
// applied cleanly and the result validates; there is no partial publish.
type Service struct {
	factory *llm.Factory
}

func NewService(factory *llm.Factory) *Service {
	return &Service{factory: factory}
}

// Build executes the builder flow for one request, emitting chunk, graph,
// diff and error events. A fatal step emits one error event and stops.
func (s *Service) Build(ctx context.Context, reqCtx *model.ChatRequestContext, emit func(chat.Event)) error {
	handle, err := s.factory.Handle(ctx, reqCtx.ModelConfigID, reqCtx.AuthToken)
	if err != nil {
		return err
	}

	current, err := graphFromRequest(reqCtx.WorkflowGraph)
	if err != nil {
		emit(chat.ErrorEvent(err.Error()))
		return nil
	}

	logx.Info().Str("session_id", reqCtx.SessionID).Msg("Builder flow started")
	plan, err := Plan(ctx, handle, current, reqCtx.UserPrompt, nil, func(delta string) {
		emit(chat.Event{Type: "chunk", Content: delta})
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", reqCtx.SessionID).Msg("Builder planning failed")
		emit(chat.ErrorEvent(err.Error()))
		return nil
	}
	logx.Info().
		Int("operations", len(plan.Operations)).
		Str("session_id", reqCtx.SessionID).
		Msg("Builder plan decoded")

	result := graph.Apply(current, plan.Operations)
	if len(result.Errors) > 0 {
		logx.Error().
			Int("errors", len(result.Errors)).
			Str("session_id", reqCtx.SessionID).
			Msg("Builder apply produced errors")
		ev := chat.ErrorEvent("apply operations failed")
		ev.Data = result.Errors
		emit(ev)
		return nil
	}

	if issues := graph.Validate(result.Graph); len(issues) > 0 {
		joined := strings.Join(issues, "; ")
		logx.Error().Str("session_id", reqCtx.SessionID).Str("errors", joined).Msg("Builder graph validation failed")
		emit(chat.ErrorEvent(joined))
		return nil
	}

	diff := DiffSummary{
		AppliedOps: result.AppliedOps,
		TotalOps:   len(plan.Operations),
		NodeCount:  len(result.Graph.Nodes),
		EdgeCount:  len(result.Graph.Edges),
	}
	emit(chat.Event{Type: "graph", Data: result.Graph})
	emit(chat.Event{Type: "diff", Data: diff})
	logx.Info().
		Int("applied_ops", diff.AppliedOps).
		Int("node_count", diff.NodeCount).
		Int("edge_count", diff.EdgeCount).
		Str("session_id", reqCtx.SessionID).
		Msg("Builder flow finished")
	return nil
}

// graphFromRequest decodes the request's raw graph payload into the typed
// topology the engine operates on.
func graphFromRequest(raw map[string]any) (graph.LogicalGraph, error) {
	if raw == nil {
		return graph.LogicalGraph{}, fmt.Errorf("workflow_graph is required")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return graph.LogicalGraph{}, fmt.Errorf("marshal workflow_graph: %w", err)
	}
	var g graph.LogicalGraph
	if err := json.Unmarshal(b, &g); err != nil {
		return graph.LogicalGraph{}, fmt.Errorf("decode workflow_graph: %w", err)
	}
	return g, nil
}
