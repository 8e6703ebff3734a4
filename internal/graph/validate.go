package graph

import (
	"fmt"
	"sort"
)

// Validate checks the structural consistency of a graph and returns one
// human-readable message per violation. All checks run regardless of earlier
// failures; an empty result means the graph is valid.
func Validate(g LogicalGraph) []string {
	var errors []string

	// Node ids must be unique.
	seen := make(map[string]int, len(g.Nodes))
	for _, node := range g.Nodes {
		seen[node.ID]++
	}
	var duplicates []string
	for id, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, id)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		errors = append(errors, fmt.Sprintf("Duplicate node ids: %v", duplicates))
	}

	// Node structural completeness.
	for _, node := range g.Nodes {
		if node.ID == "" || node.Type == "" {
			errors = append(errors, "Node missing id or type")
		}
		_, inputsOK := node.Data["inputs"].([]any)
		_, outputsOK := node.Data["outputs"].([]any)
		if !inputsOK || !outputsOK {
			errors = append(errors, fmt.Sprintf("Node %s missing inputs or outputs", node.ID))
		}
	}

	// Edge references must resolve.
	nodeSet := make(map[string]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		nodeSet[node.ID] = true
	}
	for _, edge := range g.Edges {
		if !nodeSet[edge.Source] || !nodeSet[edge.Target] {
			errors = append(errors, fmt.Sprintf("Edge invalid: %s -> %s", edge.Source, edge.Target))
		}
	}

	// Both system node types must be present.
	types := make(map[string]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		types[node.Type] = true
	}
	if !types[NodeTypeUserGuide] {
		errors = append(errors, "Missing required node: "+NodeTypeUserGuide)
	}
	if !types[NodeTypeWorkflowStart] {
		errors = append(errors, "Missing required node: "+NodeTypeWorkflowStart)
	}

	// At least one node id must be absent from the set of edge targets,
	// otherwise the graph is a closed cycle with no outlet.
	if len(g.Nodes) > 0 {
		targets := make(map[string]bool, len(g.Edges))
		for _, edge := range g.Edges {
			targets[edge.Target] = true
		}
		hasTerminal := false
		for _, node := range g.Nodes {
			if !targets[node.ID] {
				hasTerminal = true
				break
			}
		}
		if !hasTerminal {
			errors = append(errors, "No terminal nodes found")
		}
	}

	// Every node must be reachable from the system nodes via outgoing edges.
	edgesBySource := make(map[string][]string, len(g.Edges))
	for _, edge := range g.Edges {
		edgesBySource[edge.Source] = append(edgesBySource[edge.Source], edge.Target)
	}
	visited := make(map[string]bool, len(g.Nodes))
	var frontier []string
	for _, node := range g.Nodes {
		if node.Type == NodeTypeUserGuide || node.Type == NodeTypeWorkflowStart {
			frontier = append(frontier, node.ID)
		}
	}
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, target := range edgesBySource[id] {
			if !visited[target] {
				frontier = append(frontier, target)
			}
		}
	}
	var unreachable []string
	for _, node := range g.Nodes {
		if !visited[node.ID] {
			unreachable = append(unreachable, node.ID)
		}
	}
	if len(unreachable) > 0 {
		sort.Strings(unreachable)
		errors = append(errors, fmt.Sprintf("Unreachable nodes: %v", unreachable))
	}

	return errors
}
