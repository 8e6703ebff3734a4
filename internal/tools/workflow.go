package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/fastflow/nexus/internal/agent/model"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// ===================================
// Workflow graph introspection tools
// ===================================

type emptyInput struct{}

type nodeInfoInput struct {
	NodeID string `json:"node_id"`
}

type findNodesInput struct {
	Query string `json:"query"`
}

type workflowNodeView struct {
	ID      any `json:"id"`
	Type    any `json:"type"`
	Name    any `json:"name"`
	Intro   any `json:"intro"`
	Inputs  any `json:"inputs,omitempty"`
	Outputs any `json:"outputs,omitempty"`
}

// BuildWorkflowTools constructs the graph introspection tools for one
// request. The request's graph is remembered in the session cache first, so a
// follow-up turn without a graph still sees the last reported one.
func BuildWorkflowTools(cache *ContextCache, reqCtx *model.ChatRequestContext) []Entry {
	cache.Remember(reqCtx)

	prunedGraph := func() map[string]any {
		return PruneGraph(cache.Graph(reqCtx))
	}

	fullGraphInfo := &schema.ToolInfo{
		Name: "get_full_workflow_graph",
		Desc: "Fetch the complete workflow graph (nodes, edges, chatConfig) for structural questions about nodes, connections, upstream/downstream relations, or topology. For workflow name or description only, prefer get_workflow_meta.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}
	fullGraphTool := utils.NewTool(fullGraphInfo, func(ctx context.Context, _ *emptyInput) (map[string]any, error) {
		g := prunedGraph()
		nodes, _ := g["nodes"].([]any)
		edges, _ := g["edges"].([]any)
		logx.Info().
			Int("nodes", len(nodes)).
			Int("edges", len(edges)).
			Str("session_id", reqCtx.SessionID).
			Msg("Tool get_full_workflow_graph done")
		return g, nil
	})

	metaInfo := &schema.ToolInfo{
		Name: "get_workflow_meta",
		Desc: "Fetch only the workflow name and description. Returns workflow_name and workflow_description; no node details, no edges.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}
	metaTool := utils.NewTool(metaInfo, func(ctx context.Context, _ *emptyInput) (map[string]any, error) {
		meta := cache.Meta(reqCtx)
		return map[string]any{
			"workflow_name":        meta.WorkflowName,
			"workflow_description": meta.WorkflowDescription,
		}, nil
	})

	nodeInfoInfo := &schema.ToolInfo{
		Name: "get_workflow_node_info",
		Desc: "Fetch one node's details by its node id. Returns id/type/name/intro/inputs/outputs, or an error payload when the node does not exist.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"node_id": {
				Type:     "string",
				Desc:     "The exact node id to look up.",
				Required: true,
			},
		}),
	}
	nodeInfoTool := utils.NewTool(nodeInfoInfo, func(ctx context.Context, in *nodeInfoInput) (map[string]any, error) {
		g := prunedGraph()
		nodes, _ := g["nodes"].([]any)
		for _, raw := range nodes {
			node, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if nodeString(node, "nodeId") != in.NodeID {
				continue
			}
			return map[string]any{
				"id":      node["nodeId"],
				"type":    node["flowNodeType"],
				"name":    node["name"],
				"intro":   node["intro"],
				"inputs":  node["inputs"],
				"outputs": node["outputs"],
			}, nil
		}
		logx.Info().Str("node_id", in.NodeID).Str("session_id", reqCtx.SessionID).Msg("Tool get_workflow_node_info miss")
		return map[string]any{"error": "node not found: " + in.NodeID}, nil
	})

	findNodesInfo := &schema.ToolInfo{
		Name: "find_workflow_graph_nodes",
		Desc: "Search nodes by keyword when the node id is unknown. Matches node id, name, intro and type case-insensitively; returns an array of candidate nodes, empty for an empty query.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "Keyword to match against node id, name, intro and type.",
				Required: true,
			},
		}),
	}
	findNodesTool := utils.NewTool(findNodesInfo, func(ctx context.Context, in *findNodesInput) ([]workflowNodeView, error) {
		query := strings.ToLower(strings.TrimSpace(in.Query))
		matched := make([]workflowNodeView, 0)
		if query == "" {
			return matched, nil
		}

		g := prunedGraph()
		nodes, _ := g["nodes"].([]any)
		for _, raw := range nodes {
			node, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			searchable := strings.ToLower(strings.Join([]string{
				nodeString(node, "nodeId"),
				nodeString(node, "name"),
				nodeString(node, "intro"),
				nodeString(node, "flowNodeType"),
			}, " "))
			if !strings.Contains(searchable, query) {
				continue
			}
			matched = append(matched, workflowNodeView{
				ID:    node["nodeId"],
				Type:  node["flowNodeType"],
				Name:  node["name"],
				Intro: node["intro"],
			})
		}
		logx.Info().
			Int("hits", len(matched)).
			Str("session_id", reqCtx.SessionID).
			Msg("Tool find_workflow_graph_nodes done")
		return matched, nil
	})

	return []Entry{
		{Info: fullGraphInfo, Tool: fullGraphTool},
		{Info: metaInfo, Tool: metaTool},
		{Info: nodeInfoInfo, Tool: nodeInfoTool},
		{Info: findNodesInfo, Tool: findNodesTool},
	}
}

func nodeString(node map[string]any, key string) string {
	if v, ok := node[key].(string); ok {
		return v
	}
	return ""
}
