package linker

// LinkedEntry is an entry together with its persisted link set.
type LinkedEntry struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	LinkedEntries []string `json:"linkedEntries"`
}

// Node is a graph vertex.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Edge is a directed link from Source to Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the node/edge view of an organization's entries.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Project builds the graph of the given entries. Every entry becomes a node, every link an edge.
// Links pointing outside the entry set are skipped.
func Project(entries []LinkedEntry) *Graph {
	graph := &Graph{
		Nodes: make([]Node, 0, len(entries)),
		Edges: make([]Edge, 0),
	}

	known := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		known[entry.ID] = struct{}{}
		graph.Nodes = append(graph.Nodes, Node{ID: entry.ID, Name: entry.Name})
	}

	for _, entry := range entries {
		for _, target := range entry.LinkedEntries {
			if _, ok := known[target]; !ok {
				continue
			}
			graph.Edges = append(graph.Edges, Edge{Source: entry.ID, Target: target})
		}
	}

	return graph
}
