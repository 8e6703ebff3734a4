package tools

// Field drop lists applied before a graph is handed to the model. The goal is
// token economy: UI-only presentation fields carry no information the model
// can act on.
var (
	nodeDropFields       = []string{"avatar", "isFolded", "position", "version", "showStatus", "showResponse"}
	nodeInputDropFields  = []string{"renderTypeList", "llmModelType", "valueDesc", "debugLabel", "toolDescription", "editField", "customInputConfig"}
	nodeOutputDropFields = []string{"description", "type", "customFieldConfig"}
	edgeDropFields       = []string{"zIndex", "type"}
)

// PruneGraph returns a copy of the raw workflow graph with UI-only fields
// removed from nodes, their inputs/outputs, and edges. The input value is
// never modified; cached graphs stay intact.
func PruneGraph(full map[string]any) map[string]any {
	prunedNodes := make([]any, 0)
	if nodes, ok := full["nodes"].([]any); ok {
		for _, raw := range nodes {
			node, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			pruned := dropFields(node, nodeDropFields)
			if inputs, ok := pruned["inputs"].([]any); ok {
				pruned["inputs"] = pruneItems(inputs, nodeInputDropFields)
			}
			if outputs, ok := pruned["outputs"].([]any); ok {
				pruned["outputs"] = pruneItems(outputs, nodeOutputDropFields)
			}
			prunedNodes = append(prunedNodes, pruned)
		}
	}

	prunedEdges := make([]any, 0)
	if edges, ok := full["edges"].([]any); ok {
		for _, raw := range edges {
			edge, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			prunedEdges = append(prunedEdges, dropFields(edge, edgeDropFields))
		}
	}

	chatConfig, ok := full["chatConfig"].(map[string]any)
	if !ok {
		chatConfig = map[string]any{}
	}
	return map[string]any{
		"nodes":      prunedNodes,
		"edges":      prunedEdges,
		"chatConfig": chatConfig,
	}
}

func dropFields(item map[string]any, drop []string) map[string]any {
	dropSet := make(map[string]struct{}, len(drop))
	for _, f := range drop {
		dropSet[f] = struct{}{}
	}
	out := make(map[string]any, len(item))
	for k, v := range item {
		if _, skip := dropSet[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}

func pruneItems(items []any, drop []string) []any {
	out := make([]any, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, dropFields(item, drop))
	}
	return out
}
