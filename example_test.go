package knowledge_test

import (
	"context"
	"fmt"

	knowledge "github.com/emrgen/knowledge"
)

func ExampleClient_UpdateEntry() {
	ctx := context.Background()
	client := knowledge.NewClient("http://localhost:4020", "alice", []string{"member"})

	entry, err := client.GetEntry(ctx, "7f1c0a52-7a89-4c5e-9d8e-2f1b7c0e4d11")
	if err != nil {
		fmt.Println(err)
		return
	}

	name := "Alpha"
	version := entry.Version + 1
	var renamed *knowledge.Entry
	renamed, err = client.UpdateEntry(ctx, entry.ID, knowledge.UpdateEntryRequest{Name: &name, Version: &version})
	if knowledge.IsConflict(err) {
		fmt.Println("entry changed since it was read")
		return
	}
	if err != nil {
		fmt.Println(err)
		return
	}

	var graph *knowledge.Graph
	graph, err = client.ProjectGraph(ctx, renamed.OrganizationID)
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, edge := range graph.Edges {
		fmt.Println(edge.Source, "->", edge.Target)
	}
}
