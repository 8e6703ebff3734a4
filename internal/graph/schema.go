package graph

import (
	"fmt"
)

// System node types every valid workflow must contain.
const (
	NodeTypeWorkflowStart = "workflowStart"
	NodeTypeUserGuide     = "userGuide"
)

// NodeInstance is a concrete node placed on the canvas. Data carries the full
// frontend payload (name/intro/inputs/outputs/position) and is treated as an
// open structure here; only the engine and validator interpret parts of it.
type NodeInstance struct {
	ID   string         `json:"nodeId"`
	Type string         `json:"flowNodeType"`
	Data map[string]any `json:"data,omitempty"`
}

// EdgeInstance connects two nodes. The full 4-tuple is the edge identity, so
// two edges between the same nodes on different handles coexist.
type EdgeInstance struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// EdgeKey is the identity key of an edge.
type EdgeKey struct {
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
}

// Key returns the identity key of the edge.
func (e EdgeInstance) Key() EdgeKey {
	return EdgeKey{
		Source:       e.Source,
		Target:       e.Target,
		SourceHandle: e.SourceHandle,
		TargetHandle: e.TargetHandle,
	}
}

// LogicalGraph is the topology-only representation of a workflow.
// It carries no UI layout data and is never mutated in place by the engine.
type LogicalGraph struct {
	Nodes []NodeInstance `json:"nodes"`
	Edges []EdgeInstance `json:"edges"`
}

// OpType enumerates the atomic edit instructions a plan may contain.
type OpType string

const (
	OpAddNode      OpType = "ADD_NODE"
	OpRemoveNode   OpType = "REMOVE_NODE"
	OpAddEdge      OpType = "ADD_EDGE"
	OpRemoveEdge   OpType = "REMOVE_EDGE"
	OpUpdateInputs OpType = "UPDATE_INPUTS"
	OpAutoHeal     OpType = "AUTO_HEAL"
)

// Operation is one atomic edit against a workflow graph. Created by the
// planning step, consumed exactly once by Apply; the engine only writes back
// TargetID when it resolves a generated node id.
type Operation struct {
	OpID     string         `json:"op_id,omitempty"`
	OpType   OpType         `json:"op_type"`
	TargetID string         `json:"target_id,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// Validate checks the per-type parameter schema. It rejects structurally
// unusable operations up front; content-level failures (unknown ids, missing
// node type) are reported by Apply as OperationErrors instead.
func (op Operation) Validate() error {
	switch op.OpType {
	case OpAddNode, OpAutoHeal:
		return nil
	case OpRemoveNode:
		if op.TargetID == "" && paramString(op.Params, "id") == "" {
			return fmt.Errorf("%s requires a target node id", op.OpType)
		}
		return nil
	case OpAddEdge, OpRemoveEdge:
		if paramString(op.Params, "source") == "" || paramString(op.Params, "target") == "" {
			return fmt.Errorf("%s requires source and target", op.OpType)
		}
		return nil
	case OpUpdateInputs:
		if op.TargetID == "" && paramString(op.Params, "id") == "" {
			return fmt.Errorf("%s requires a target node id", op.OpType)
		}
		if len(paramList(op.Params, "inputs")) == 0 {
			return fmt.Errorf("%s requires a non-empty inputs list", op.OpType)
		}
		return nil
	default:
		return fmt.Errorf("unknown op_type %q", op.OpType)
	}
}

// ErrorCode is the closed set of per-operation failure codes.
type ErrorCode string

const (
	ErrMissingNodeType ErrorCode = "MISSING_NODE_TYPE"
	ErrNodeNotFound    ErrorCode = "NODE_NOT_FOUND"
	ErrEdgeNotFound    ErrorCode = "EDGE_NOT_FOUND"
	ErrInvalidOp       ErrorCode = "INVALID_OP"
)

// OperationError describes one failed operation inside a batch.
type OperationError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	OpID     string    `json:"op_id,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
}

// ApplyResult is the outcome of applying an operation batch: the new graph,
// one error entry per failed operation, and the count of fully applied ops.
type ApplyResult struct {
	Graph      LogicalGraph     `json:"graph"`
	Errors     []OperationError `json:"errors"`
	AppliedOps int              `json:"applied_ops"`
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func paramMap(params map[string]any, key string) map[string]any {
	if params == nil {
		return nil
	}
	if v, ok := params[key].(map[string]any); ok {
		return v
	}
	return nil
}

func paramList(params map[string]any, key string) []any {
	if params == nil {
		return nil
	}
	if v, ok := params[key].([]any); ok {
		return v
	}
	return nil
}
