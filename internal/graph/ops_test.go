package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseGraph() LogicalGraph {
	return LogicalGraph{
		Nodes: []NodeInstance{
			{ID: "guide", Type: NodeTypeUserGuide, Data: map[string]any{"inputs": []any{}, "outputs": []any{}}},
			{ID: "start", Type: NodeTypeWorkflowStart, Data: map[string]any{"inputs": []any{}, "outputs": []any{}}},
			{ID: "llm-1", Type: "llm", Data: map[string]any{
				"name": "Answer",
				"inputs": []any{
					map[string]any{"key": "prompt", "value": "hello"},
					map[string]any{"key": "temperature", "value": 0.2},
				},
				"outputs": []any{},
			}},
		},
		Edges: []EdgeInstance{
			{Source: "guide", Target: "start"},
			{Source: "start", Target: "llm-1"},
		},
	}
}

func TestApplyAddNodeGeneratesID(t *testing.T) {
	g := baseGraph()
	ops := []Operation{{
		OpType: OpAddNode,
		Params: map[string]any{"type": "httpRequest", "name": "Fetch"},
	}}

	result := Apply(g, ops)

	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.AppliedOps)
	require.Len(t, result.Graph.Nodes, 4)

	added := result.Graph.Nodes[3]
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "httpRequest", added.Type)
	assert.Equal(t, "Fetch", added.Data["name"])
	assert.Equal(t, []any{}, added.Data["inputs"])
	assert.Equal(t, []any{}, added.Data["outputs"])

	// The generated id is written back so later ops can reference it.
	assert.Equal(t, added.ID, ops[0].TargetID)
}

func TestApplyAddNodeLastWriteWins(t *testing.T) {
	g := baseGraph()
	result := Apply(g, []Operation{
		{OpType: OpAddNode, Params: map[string]any{"type": "code", "id": "llm-1", "name": "Replaced"}},
	})

	require.Empty(t, result.Errors)
	require.Len(t, result.Graph.Nodes, 3)
	assert.Equal(t, "code", result.Graph.Nodes[2].Type)
	assert.Equal(t, "Replaced", result.Graph.Nodes[2].Data["name"])
}

func TestApplyAddNodeMissingType(t *testing.T) {
	result := Apply(baseGraph(), []Operation{
		{OpID: "op-1", OpType: OpAddNode, Params: map[string]any{"name": "no type"}},
	})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrMissingNodeType, result.Errors[0].Code)
	assert.Equal(t, "op-1", result.Errors[0].OpID)
	assert.Equal(t, 0, result.AppliedOps)
	assert.Len(t, result.Graph.Nodes, 3)
}

func TestApplyRemoveNodeCascadesEdges(t *testing.T) {
	result := Apply(baseGraph(), []Operation{
		{OpType: OpRemoveNode, TargetID: "llm-1"},
	})

	require.Empty(t, result.Errors)
	assert.Len(t, result.Graph.Nodes, 2)
	require.Len(t, result.Graph.Edges, 1)
	assert.Equal(t, "guide", result.Graph.Edges[0].Source)
}

func TestApplyRemoveNodeNotFound(t *testing.T) {
	result := Apply(baseGraph(), []Operation{
		{OpType: OpRemoveNode, TargetID: "missing"},
	})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrNodeNotFound, result.Errors[0].Code)
	assert.Equal(t, "missing", result.Errors[0].TargetID)
	assert.Len(t, result.Graph.Nodes, 3)
}

func TestApplyAddEdgeIdempotent(t *testing.T) {
	op := Operation{OpType: OpAddEdge, Params: map[string]any{"source": "start", "target": "llm-1"}}
	result := Apply(baseGraph(), []Operation{op, op})

	require.Empty(t, result.Errors)
	assert.Equal(t, 2, result.AppliedOps)
	assert.Len(t, result.Graph.Edges, 2)
}

func TestApplyAddEdgeDifferentHandlesCoexist(t *testing.T) {
	result := Apply(baseGraph(), []Operation{
		{OpType: OpAddEdge, Params: map[string]any{"source": "start", "target": "llm-1", "source_handle": "out-b"}},
	})

	require.Empty(t, result.Errors)
	assert.Len(t, result.Graph.Edges, 3)
}

func TestApplyRemoveEdgeNotFound(t *testing.T) {
	result := Apply(baseGraph(), []Operation{
		{OpType: OpRemoveEdge, Params: map[string]any{"source": "llm-1", "target": "guide"}},
	})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrEdgeNotFound, result.Errors[0].Code)
	assert.Len(t, result.Graph.Edges, 2)
}

func TestApplyUpdateInputsOverwritesValue(t *testing.T) {
	g := baseGraph()
	result := Apply(g, []Operation{{
		OpType:   OpUpdateInputs,
		TargetID: "llm-1",
		Params: map[string]any{"inputs": []any{
			map[string]any{"key": "prompt", "value": "rewritten"},
		}},
	}})

	require.Empty(t, result.Errors)
	node := result.Graph.Nodes[2]
	inputs := node.Data["inputs"].([]any)
	assert.Equal(t, "rewritten", inputs[0].(map[string]any)["value"])
	assert.Equal(t, 0.2, inputs[1].(map[string]any)["value"])

	// The input snapshot must stay untouched.
	original := g.Nodes[2].Data["inputs"].([]any)
	assert.Equal(t, "hello", original[0].(map[string]any)["value"])
}

func TestApplyUpdateInputsUnknownKeyAbandonsOp(t *testing.T) {
	result := Apply(baseGraph(), []Operation{{
		OpType:   OpUpdateInputs,
		TargetID: "llm-1",
		Params: map[string]any{"inputs": []any{
			map[string]any{"key": "prompt", "value": "rewritten"},
			map[string]any{"key": "nope", "value": 1},
		}},
	}})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrInvalidOp, result.Errors[0].Code)
	assert.Equal(t, 0, result.AppliedOps)

	// No partial write: the known key keeps its old value.
	inputs := result.Graph.Nodes[2].Data["inputs"].([]any)
	assert.Equal(t, "hello", inputs[0].(map[string]any)["value"])
}

func TestApplyFailureDoesNotAbortBatch(t *testing.T) {
	result := Apply(baseGraph(), []Operation{
		{OpType: OpRemoveNode, TargetID: "missing"},
		{OpType: OpAddEdge, Params: map[string]any{"source": "guide", "target": "llm-1"}},
		{OpType: "EXPLODE"},
	})

	assert.Equal(t, 1, result.AppliedOps)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, ErrNodeNotFound, result.Errors[0].Code)
	assert.Equal(t, ErrInvalidOp, result.Errors[1].Code)
	assert.Len(t, result.Graph.Edges, 3)
}

func TestApplyEmptyBatchRoundTrips(t *testing.T) {
	g := baseGraph()
	result := Apply(g, nil)

	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.AppliedOps)
	assert.Equal(t, g, result.Graph)
}

func TestOperationValidate(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr bool
	}{
		{"add node always passes", Operation{OpType: OpAddNode}, false},
		{"remove node needs id", Operation{OpType: OpRemoveNode}, true},
		{"remove node with param id", Operation{OpType: OpRemoveNode, Params: map[string]any{"id": "n1"}}, false},
		{"add edge needs endpoints", Operation{OpType: OpAddEdge, Params: map[string]any{"source": "a"}}, true},
		{"remove edge complete", Operation{OpType: OpRemoveEdge, Params: map[string]any{"source": "a", "target": "b"}}, false},
		{"update inputs needs list", Operation{OpType: OpUpdateInputs, TargetID: "n1"}, true},
		{"unknown op type", Operation{OpType: "RENAME_NODE"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
