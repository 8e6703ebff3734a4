package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/fastflow/nexus/internal/agent/model"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// ===================================
// MCP introspection tools
// ===================================
//
// MCP capabilities are attached to the canvas through "tools" and "toolSet"
// nodes, linked by edges. Tool inventories are exactly what models hallucinate
// on (invented names, rewritten descriptions, missing entries), so everything
// here is extracted deterministically from the raw graph fields, and the
// markdown table is rendered backend-side so the model cannot rewrite it.

const (
	nodeTypeToolSet   = "toolSet"
	nodeTypeToolsNode = "tools"
)

type mcpNodeInput struct {
	NodeIDOrName string `json:"node_id_or_name"`
}

type mcpToolsNodeInput struct {
	NodeIDOrName string `json:"node_id_or_name"`
	Handle       string `json:"handle,omitempty"`
}

type nodeRef struct {
	NodeID       string `json:"nodeId"`
	FlowNodeType string `json:"flowNodeType"`
	Name         string `json:"name"`
}

func nodeRefOf(node map[string]any) nodeRef {
	return nodeRef{
		NodeID:       nodeString(node, "nodeId"),
		FlowNodeType: nodeString(node, "flowNodeType"),
		Name:         nodeString(node, "name"),
	}
}

// resolveGraphNode finds one node by exact nodeId first, then by
// case-insensitive name containment. An ambiguous name returns the candidate
// list instead of silently picking the first hit.
func resolveGraphNode(g map[string]any, needle string) (map[string]any, map[string]any) {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return nil, map[string]any{"error": "node_id_or_name is empty"}
	}

	nodes, ok := g["nodes"].([]any)
	if !ok {
		return nil, map[string]any{"error": "workflow_graph.nodes is not a list"}
	}

	for _, raw := range nodes {
		node, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if nodeString(node, "nodeId") == needle {
			return node, nil
		}
	}

	lowered := strings.ToLower(needle)
	var candidates []map[string]any
	for _, raw := range nodes {
		node, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(nodeString(node, "name")), lowered) {
			candidates = append(candidates, node)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, map[string]any{"error": "node not found: " + needle}
	case 1:
		return candidates[0], nil
	default:
		refs := make([]nodeRef, 0, len(candidates))
		for _, node := range candidates {
			refs = append(refs, nodeRefOf(node))
		}
		return nil, map[string]any{
			"error":      "node name is ambiguous: " + needle,
			"candidates": refs,
		}
	}
}

// extractToolSetToolList pulls a toolSet node's toolList, verbatim. Two shapes
// exist in the wild: inputs[key=="toolSetData"].value.toolList and
// inputs[].value.toolSetData.toolList. Returns the list plus the extraction
// path used, kept as an evidence field in the result.
func extractToolSetToolList(node map[string]any) ([]map[string]any, string) {
	inputs, ok := node["inputs"].([]any)
	if !ok {
		return nil, "inputs(not_list)"
	}

	for _, raw := range inputs {
		item, ok := raw.(map[string]any)
		if !ok || item["key"] != "toolSetData" {
			continue
		}
		value, ok := item["value"].(map[string]any)
		if !ok {
			continue
		}
		if list, ok := value["toolList"].([]any); ok {
			return toolListItems(list), "inputs[key=toolSetData].value.toolList"
		}
	}

	for _, raw := range inputs {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value, ok := item["value"].(map[string]any)
		if !ok {
			continue
		}
		toolSetData, ok := value["toolSetData"].(map[string]any)
		if !ok {
			continue
		}
		if list, ok := toolSetData["toolList"].([]any); ok {
			return toolListItems(list), "inputs[].value.toolSetData.toolList"
		}
	}

	return nil, "toolList(not_found)"
}

func toolListItems(list []any) []map[string]any {
	items := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		if item, ok := raw.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

// projectToolList keeps only the verbatim name/description/inputSchema fields.
func projectToolList(items []map[string]any) []map[string]any {
	projected := make([]map[string]any, 0, len(items))
	for _, item := range items {
		projected = append(projected, map[string]any{
			"name":        item["name"],
			"description": item["description"],
			"inputSchema": item["inputSchema"],
		})
	}
	return projected
}

// renderToolListMarkdown renders the inventory table backend-side so the list
// reaches the user without a model rewrite pass.
func renderToolListMarkdown(items []map[string]any) string {
	lines := []string{"| # | Tool | Description |", "|---:|---|---|"}
	for i, item := range items {
		name := strings.TrimSpace(strings.ReplaceAll(nodeString(item, "name"), "\n", " "))
		desc := strings.TrimSpace(strings.ReplaceAll(nodeString(item, "description"), "\n", " "))
		lines = append(lines, fmt.Sprintf("| %d | %s | %s |", i+1, name, desc))
	}
	return strings.Join(lines, "\n")
}

// BuildMCPTools constructs the two deterministic MCP inventory tools. They
// read the raw (unpruned) graph: toolList lives inside input values and must
// reach the user untouched.
func BuildMCPTools(cache *ContextCache, reqCtx *model.ChatRequestContext) []Entry {
	cache.Remember(reqCtx)

	toolsetInfo := &schema.ToolInfo{
		Name: "get_toolset_tools",
		Desc: "Fetch the MCP tool inventory (toolList) exposed by one toolSet node, extracted verbatim from the workflow graph. Accepts a nodeId or a node name; returns items (name/description/inputSchema) plus a pre-rendered markdown_table. Use this instead of reading the raw graph whenever the user asks which MCP tools a toolSet provides.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"node_id_or_name": {
				Type:     "string",
				Desc:     "The toolSet node's exact nodeId, or (part of) its name.",
				Required: true,
			},
		}),
	}
	toolsetTool := utils.NewTool(toolsetInfo, func(ctx context.Context, in *mcpNodeInput) (map[string]any, error) {
		node, errPayload := resolveGraphNode(cache.Graph(reqCtx), in.NodeIDOrName)
		if errPayload != nil {
			logx.Info().Str("node", in.NodeIDOrName).Str("session_id", reqCtx.SessionID).Msg("Tool get_toolset_tools miss")
			return errPayload, nil
		}
		if nodeString(node, "flowNodeType") != nodeTypeToolSet {
			return map[string]any{
				"error": "node is not a toolSet",
				"node":  nodeRefOf(node),
			}, nil
		}

		items, pathUsed := extractToolSetToolList(node)
		logx.Info().
			Int("count", len(items)).
			Str("session_id", reqCtx.SessionID).
			Msg("Tool get_toolset_tools done")
		return map[string]any{
			"toolSet":              nodeRefOf(node),
			"count":                len(items),
			"extraction_path_used": pathUsed,
			"items":                projectToolList(items),
			"markdown_table":       renderToolListMarkdown(items),
		}, nil
	})

	toolsNodeInfo := &schema.ToolInfo{
		Name: "get_tools_node_mcp_tools",
		Desc: "Fetch the union of MCP tool inventories attached below one tools node: follows the node's outgoing edges to its toolSet children and merges their toolList entries verbatim. Accepts a nodeId or a node name; handle optionally restricts to edges with that exact sourceHandle. Returns per-toolSet summaries, merged items and a pre-rendered markdown_table.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"node_id_or_name": {
				Type:     "string",
				Desc:     "The tools node's exact nodeId, or (part of) its name.",
				Required: true,
			},
			"handle": {
				Type: "string",
				Desc: "Optional sourceHandle filter; only edges with this exact handle are followed.",
			},
		}),
	}
	toolsNodeTool := utils.NewTool(toolsNodeInfo, func(ctx context.Context, in *mcpToolsNodeInput) (map[string]any, error) {
		g := cache.Graph(reqCtx)
		node, errPayload := resolveGraphNode(g, in.NodeIDOrName)
		if errPayload != nil {
			logx.Info().Str("node", in.NodeIDOrName).Str("session_id", reqCtx.SessionID).Msg("Tool get_tools_node_mcp_tools miss")
			return errPayload, nil
		}
		if nodeString(node, "flowNodeType") != nodeTypeToolsNode {
			return map[string]any{
				"error": "node is not a tools node",
				"node":  nodeRefOf(node),
			}, nil
		}

		nodes, nodesOK := g["nodes"].([]any)
		edges, edgesOK := g["edges"].([]any)
		if !nodesOK || !edgesOK {
			return map[string]any{"error": "workflow_graph.edges/nodes is not a list"}, nil
		}
		nodeByID := make(map[string]map[string]any, len(nodes))
		for _, raw := range nodes {
			if n, ok := raw.(map[string]any); ok {
				if id := nodeString(n, "nodeId"); id != "" {
					nodeByID[id] = n
				}
			}
		}

		handle := strings.TrimSpace(in.Handle)
		sourceID := nodeString(node, "nodeId")
		var allItems []map[string]any
		toolSets := make([]map[string]any, 0)
		for _, raw := range edges {
			edge, ok := raw.(map[string]any)
			if !ok || nodeString(edge, "source") != sourceID {
				continue
			}
			if handle != "" && nodeString(edge, "sourceHandle") != handle {
				continue
			}
			target, ok := nodeByID[nodeString(edge, "target")]
			if !ok || nodeString(target, "flowNodeType") != nodeTypeToolSet {
				continue
			}
			items, pathUsed := extractToolSetToolList(target)
			toolSets = append(toolSets, map[string]any{
				"nodeId":               nodeString(target, "nodeId"),
				"name":                 nodeString(target, "name"),
				"count":                len(items),
				"extraction_path_used": pathUsed,
			})
			allItems = append(allItems, items...)
		}

		result := map[string]any{
			"toolsNode":      nodeRefOf(node),
			"toolSets":       toolSets,
			"count":          len(allItems),
			"items":          projectToolList(allItems),
			"markdown_table": renderToolListMarkdown(allItems),
		}
		if handle != "" {
			result["handle"] = handle
		}
		logx.Info().
			Int("toolsets", len(toolSets)).
			Int("count", len(allItems)).
			Str("session_id", reqCtx.SessionID).
			Msg("Tool get_tools_node_mcp_tools done")
		return result, nil
	})

	return []Entry{
		{Info: toolsetInfo, Tool: toolsetTool},
		{Info: toolsNodeInfo, Tool: toolsNodeTool},
	}
}
