package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Apply runs a batch of operations against a graph snapshot and returns a new
// graph. A failing operation never aborts the batch: each failure becomes one
// OperationError and processing continues, so a streaming caller can report
// exactly which instruction failed. AppliedOps counts only operations that
// fully succeeded.
//
// The input graph is never mutated. Operations are consumed by value except
// for TargetID back-filling on ADD_NODE when the engine generates the node id.
func Apply(g LogicalGraph, ops []Operation) ApplyResult {
	idx := newGraphIndex(g)
	result := ApplyResult{}

	for i := range ops {
		op := ops[i]
		var opErr *OperationError

		switch op.OpType {
		case OpAddNode:
			var resolvedID string
			resolvedID, opErr = idx.addNode(op)
			if opErr == nil && ops[i].TargetID == "" {
				ops[i].TargetID = resolvedID
			}
		case OpRemoveNode:
			opErr = idx.removeNode(op)
		case OpAddEdge:
			opErr = idx.addEdge(op)
		case OpRemoveEdge:
			opErr = idx.removeEdge(op)
		case OpUpdateInputs:
			multi := idx.updateInputs(op)
			if len(multi) > 0 {
				result.Errors = append(result.Errors, multi...)
				continue
			}
		case OpAutoHeal:
			// Reserved, currently a pass-through.
		default:
			opErr = &OperationError{
				Code:    ErrInvalidOp,
				Message: fmt.Sprintf("unknown op_type %q", op.OpType),
			}
		}

		if opErr != nil {
			opErr.OpID = op.OpID
			if opErr.TargetID == "" {
				opErr.TargetID = op.TargetID
			}
			result.Errors = append(result.Errors, *opErr)
			continue
		}
		result.AppliedOps++
	}

	result.Graph = idx.snapshot()
	return result
}

// graphIndex is the single-pass working index: nodes by id and edges by their
// 4-tuple key, with insertion order preserved for deterministic output.
type graphIndex struct {
	nodes     map[string]NodeInstance
	nodeOrder []string
	edges     map[EdgeKey]EdgeInstance
	edgeOrder []EdgeKey
}

func newGraphIndex(g LogicalGraph) *graphIndex {
	idx := &graphIndex{
		nodes: make(map[string]NodeInstance, len(g.Nodes)),
		edges: make(map[EdgeKey]EdgeInstance, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		if _, ok := idx.nodes[n.ID]; !ok {
			idx.nodeOrder = append(idx.nodeOrder, n.ID)
		}
		idx.nodes[n.ID] = n
	}
	for _, e := range g.Edges {
		k := e.Key()
		if _, ok := idx.edges[k]; !ok {
			idx.edgeOrder = append(idx.edgeOrder, k)
		}
		idx.edges[k] = e
	}
	return idx
}

func (idx *graphIndex) snapshot() LogicalGraph {
	out := LogicalGraph{
		Nodes: make([]NodeInstance, 0, len(idx.nodeOrder)),
		Edges: make([]EdgeInstance, 0, len(idx.edgeOrder)),
	}
	for _, id := range idx.nodeOrder {
		if n, ok := idx.nodes[id]; ok {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, k := range idx.edgeOrder {
		if e, ok := idx.edges[k]; ok {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// addNode inserts or overwrites a node. Re-adding an existing id overwrites in
// place (last-write-wins). Returns the resolved node id for back-filling.
func (idx *graphIndex) addNode(op Operation) (string, *OperationError) {
	nodeType := paramString(op.Params, "type")
	if strings.TrimSpace(nodeType) == "" {
		return "", &OperationError{
			Code:    ErrMissingNodeType,
			Message: "ADD_NODE requires a non-empty node type",
		}
	}

	id := paramString(op.Params, "id")
	if id == "" {
		id = op.TargetID
	}
	if id == "" {
		id = uuid.NewString()[:8]
	}

	data := paramMap(op.Params, "data")
	if data == nil {
		data = synthesizeNodeData(op.Params)
	}

	if _, exists := idx.nodes[id]; !exists {
		idx.nodeOrder = append(idx.nodeOrder, id)
	}
	idx.nodes[id] = NodeInstance{ID: id, Type: nodeType, Data: data}
	return id, nil
}

// synthesizeNodeData builds the node payload from individual params when the
// caller did not supply a full data object.
func synthesizeNodeData(params map[string]any) map[string]any {
	data := map[string]any{}
	for _, key := range []string{"name", "intro", "icon", "position"} {
		if params == nil {
			break
		}
		if v, ok := params[key]; ok && v != nil {
			data[key] = v
		}
	}
	inputs := paramList(params, "inputs")
	if inputs == nil {
		inputs = []any{}
	}
	outputs := paramList(params, "outputs")
	if outputs == nil {
		outputs = []any{}
	}
	data["inputs"] = inputs
	data["outputs"] = outputs
	return data
}

// removeNode deletes the target node and, silently, every edge touching it.
func (idx *graphIndex) removeNode(op Operation) *OperationError {
	id := op.TargetID
	if id == "" {
		id = paramString(op.Params, "id")
	}
	if _, ok := idx.nodes[id]; !ok {
		return &OperationError{
			Code:     ErrNodeNotFound,
			Message:  fmt.Sprintf("node not found: %s", id),
			TargetID: id,
		}
	}
	delete(idx.nodes, id)
	for k := range idx.edges {
		if k.Source == id || k.Target == id {
			delete(idx.edges, k)
		}
	}
	return nil
}

// addEdge inserts or overwrites an edge keyed by the full 4-tuple. Re-adding
// an identical edge is idempotent; a different handle makes a parallel edge.
func (idx *graphIndex) addEdge(op Operation) *OperationError {
	source := paramString(op.Params, "source")
	target := paramString(op.Params, "target")
	if source == "" || target == "" {
		return &OperationError{
			Code:    ErrInvalidOp,
			Message: "ADD_EDGE requires source and target",
		}
	}
	edge := EdgeInstance{
		Source:       source,
		Target:       target,
		SourceHandle: paramString(op.Params, "source_handle"),
		TargetHandle: paramString(op.Params, "target_handle"),
	}
	k := edge.Key()
	if _, ok := idx.edges[k]; !ok {
		idx.edgeOrder = append(idx.edgeOrder, k)
	}
	idx.edges[k] = edge
	return nil
}

func (idx *graphIndex) removeEdge(op Operation) *OperationError {
	source := paramString(op.Params, "source")
	target := paramString(op.Params, "target")
	if source == "" || target == "" {
		return &OperationError{
			Code:    ErrInvalidOp,
			Message: "REMOVE_EDGE requires source and target",
		}
	}
	k := EdgeKey{
		Source:       source,
		Target:       target,
		SourceHandle: paramString(op.Params, "source_handle"),
		TargetHandle: paramString(op.Params, "target_handle"),
	}
	if _, ok := idx.edges[k]; !ok {
		return &OperationError{
			Code:    ErrEdgeNotFound,
			Message: fmt.Sprintf("edge not found: %s -> %s", source, target),
		}
	}
	delete(idx.edges, k)
	return nil
}

// updateInputs overwrites values of existing input keys on the target node.
// Every unknown key yields one INVALID_OP error and the whole operation is
// abandoned without partial writes. Returns nil on success.
func (idx *graphIndex) updateInputs(op Operation) []OperationError {
	id := op.TargetID
	if id == "" {
		id = paramString(op.Params, "id")
	}
	node, ok := idx.nodes[id]
	if !ok {
		return []OperationError{{
			Code:     ErrNodeNotFound,
			Message:  fmt.Sprintf("node not found: %s", id),
			OpID:     op.OpID,
			TargetID: id,
		}}
	}

	updates := paramList(op.Params, "inputs")
	if len(updates) == 0 {
		return []OperationError{{
			Code:     ErrInvalidOp,
			Message:  "UPDATE_INPUTS requires a non-empty inputs list",
			OpID:     op.OpID,
			TargetID: id,
		}}
	}

	current, _ := node.Data["inputs"].([]any)
	known := make(map[string]int, len(current))
	for i, raw := range current {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if key, ok := item["key"].(string); ok && key != "" {
			known[key] = i
		}
	}

	// Check every update key before writing anything.
	var errs []OperationError
	for _, raw := range updates {
		item, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, OperationError{
				Code:     ErrInvalidOp,
				Message:  "UPDATE_INPUTS items must be {key,value} objects",
				OpID:     op.OpID,
				TargetID: id,
			})
			continue
		}
		key, _ := item["key"].(string)
		if _, ok := known[key]; !ok {
			errs = append(errs, OperationError{
				Code:     ErrInvalidOp,
				Message:  fmt.Sprintf("unknown input key: %s", key),
				OpID:     op.OpID,
				TargetID: id,
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// Copy-on-write so earlier snapshots of the graph stay untouched.
	nextInputs := make([]any, len(current))
	for i, raw := range current {
		if item, ok := raw.(map[string]any); ok {
			clone := make(map[string]any, len(item))
			for k, v := range item {
				clone[k] = v
			}
			nextInputs[i] = clone
		} else {
			nextInputs[i] = raw
		}
	}
	for _, raw := range updates {
		item := raw.(map[string]any)
		key := item["key"].(string)
		nextInputs[known[key]].(map[string]any)["value"] = item["value"]
	}

	nextData := make(map[string]any, len(node.Data))
	for k, v := range node.Data {
		nextData[k] = v
	}
	nextData["inputs"] = nextInputs
	node.Data = nextData
	idx.nodes[id] = node
	return nil
}
