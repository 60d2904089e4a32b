package knowledge

import (
	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/service"
)

// OverwriteVersion as the version of an UpdateEntryRequest skips the optimistic version check.
const OverwriteVersion = service.OverwriteVersion

// Wire types of the HTTP API.
type (
	Organization       = service.Organization
	Group              = service.Group
	Entry              = service.Entry
	EntryBackup        = service.EntryBackup
	Candidate          = service.Candidate
	UpdateEntryRequest = service.UpdateEntryRequest

	// LinkedEntry is an entry of the link graph with its outgoing link set.
	LinkedEntry = linker.LinkedEntry
	Graph       = linker.Graph
	Node        = linker.Node
	Edge        = linker.Edge
	// Backlink names an entry whose link set contains another entry.
	Backlink = linker.Candidate
)
