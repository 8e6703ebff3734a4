package builder

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentmodel "github.com/fastflow/nexus/internal/agent/model"
	"github.com/fastflow/nexus/internal/chat"
	"github.com/fastflow/nexus/internal/graph"
	"github.com/fastflow/nexus/internal/llm"
)

// plannerModel streams a fixed plan, split into chunks like a real provider.
type plannerModel struct {
	plan string
}

func (m *plannerModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	half := len(m.plan) / 2
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(m.plan[:half], nil),
		schema.AssistantMessage(m.plan[half:], nil),
	}), nil
}

func (m *plannerModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.plan, nil), nil
}

func (m *plannerModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type staticFetcher struct{}

func (staticFetcher) FetchModelConfig(ctx context.Context, configID, authToken string) (*llm.ModelConfig, error) {
	return &llm.ModelConfig{ID: configID, ModelID: "planner"}, nil
}

func newBuilderService(plan string) *Service {
	factory := llm.NewFactoryWithBuilder(staticFetcher{}, func(ctx context.Context, cfg *llm.ModelConfig) (model.ToolCallingChatModel, error) {
		return &plannerModel{plan: plan}, nil
	})
	return NewService(factory)
}

func builderRequest() *agentmodel.ChatRequestContext {
	return &agentmodel.ChatRequestContext{
		UserPrompt:    "add an llm node after start",
		ModelConfigID: "cfg-1",
		SessionID:     "s1",
		AuthToken:     "Bearer token",
		WorkflowGraph: map[string]any{
			"nodes": []any{
				map[string]any{
					"nodeId":       "guide",
					"flowNodeType": graph.NodeTypeUserGuide,
					"data":         map[string]any{"inputs": []any{}, "outputs": []any{}},
				},
				map[string]any{
					"nodeId":       "start",
					"flowNodeType": graph.NodeTypeWorkflowStart,
					"data":         map[string]any{"inputs": []any{}, "outputs": []any{}},
				},
			},
			"edges": []any{
				map[string]any{"source": "guide", "target": "start"},
			},
		},
	}
}

func collectEvents(events *[]chat.Event) func(chat.Event) {
	return func(ev chat.Event) { *events = append(*events, ev) }
}

func TestBuildPublishesValidatedGraph(t *testing.T) {
	plan := `{"thought": "add the node and connect it", "operations": [` +
		`{"op_type": "ADD_NODE", "params": {"type": "llm", "id": "llm-1", "name": "Answer"}},` +
		`{"op_type": "ADD_EDGE", "params": {"source": "start", "target": "llm-1"}}]}`
	svc := newBuilderService(plan)

	var events []chat.Event
	err := svc.Build(context.Background(), builderRequest(), collectEvents(&events))
	require.NoError(t, err)

	var chunkCount int
	var published *graph.LogicalGraph
	var diff *DiffSummary
	for _, ev := range events {
		switch ev.Type {
		case "chunk":
			chunkCount++
		case "graph":
			g := ev.Data.(graph.LogicalGraph)
			published = &g
		case "diff":
			d := ev.Data.(DiffSummary)
			diff = &d
		case "error":
			t.Fatalf("unexpected error event: %+v", ev)
		}
	}

	assert.Equal(t, 2, chunkCount)
	require.NotNil(t, published)
	assert.Len(t, published.Nodes, 3)
	assert.Len(t, published.Edges, 2)
	require.NotNil(t, diff)
	assert.Equal(t, 2, diff.AppliedOps)
	assert.Equal(t, 2, diff.TotalOps)
	assert.Equal(t, 3, diff.NodeCount)
}

func TestBuildStopsOnApplyErrors(t *testing.T) {
	plan := `{"thought": "remove a ghost", "operations": [{"op_type": "REMOVE_NODE", "target_id": "ghost"}]}`
	svc := newBuilderService(plan)

	var events []chat.Event
	err := svc.Build(context.Background(), builderRequest(), collectEvents(&events))
	require.NoError(t, err)

	var sawError, sawGraph bool
	for _, ev := range events {
		switch ev.Type {
		case "error":
			sawError = true
			errs := ev.Data.([]graph.OperationError)
			require.Len(t, errs, 1)
			assert.Equal(t, graph.ErrNodeNotFound, errs[0].Code)
		case "graph":
			sawGraph = true
		}
	}
	assert.True(t, sawError)
	assert.False(t, sawGraph, "an invalid plan never publishes a graph")
}

func TestBuildStopsOnValidationFailure(t *testing.T) {
	// Removing the start node leaves the graph without a required system node.
	plan := `{"thought": "remove start", "operations": [{"op_type": "REMOVE_NODE", "target_id": "start"}]}`
	svc := newBuilderService(plan)

	var events []chat.Event
	err := svc.Build(context.Background(), builderRequest(), collectEvents(&events))
	require.NoError(t, err)

	var sawError, sawGraph bool
	for _, ev := range events {
		switch ev.Type {
		case "error":
			sawError = true
			assert.Contains(t, ev.Message, "Missing required node")
		case "graph":
			sawGraph = true
		}
	}
	assert.True(t, sawError)
	assert.False(t, sawGraph)
}

func TestBuildRequiresWorkflowGraph(t *testing.T) {
	svc := newBuilderService(`{"operations": []}`)
	reqCtx := builderRequest()
	reqCtx.WorkflowGraph = nil

	var events []chat.Event
	err := svc.Build(context.Background(), reqCtx, collectEvents(&events))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "error", events[0].Type)
	assert.Contains(t, events[0].Message, "workflow_graph is required")
}
