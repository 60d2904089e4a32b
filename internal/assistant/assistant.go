package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Backend is the part of the knowledge API exposed to assistants.
type Backend interface {
	ListOrganizations(ctx context.Context) ([]*service.Organization, error)
	ListGroups(ctx context.Context, organizationID string) ([]*service.Group, error)
	ListEntries(ctx context.Context, groupID string) ([]*service.Entry, error)
	GetEntry(ctx context.Context, id string) (*service.Entry, error)
	ListBacklinks(ctx context.Context, id string) ([]linker.Candidate, error)
	ListCandidates(ctx context.Context, organizationID, exclude string) ([]*service.Candidate, error)
	ProjectGraph(ctx context.Context, organizationID string) (*linker.Graph, error)
	CreateEntry(ctx context.Context, groupID, name, content string) (*service.Entry, error)
	UpdateEntry(ctx context.Context, id string, req service.UpdateEntryRequest) (*service.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// NewServer creates an MCP server exposing the knowledge base as tools.
func NewServer(backend Backend, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"knowledge",
		version,
		server.WithToolCapabilities(true),
	)

	RegisterReadTools(s, backend)
	RegisterWriteTools(s, backend)

	return s
}

// Serve runs the MCP server over stdin and stdout.
func Serve(backend Backend, version string) error {
	return server.ServeStdio(NewServer(backend, version))
}

// RegisterReadTools adds the tools that only read the knowledge base.
func RegisterReadTools(s *server.MCPServer, backend Backend) {
	s.AddTool(listOrganizationsTool(), listOrganizationsHandler(backend))
	s.AddTool(listGroupsTool(), listGroupsHandler(backend))
	s.AddTool(listEntriesTool(), listEntriesHandler(backend))
	s.AddTool(getEntryTool(), getEntryHandler(backend))
	s.AddTool(backlinksTool(), backlinksHandler(backend))
	s.AddTool(suggestTool(), suggestHandler(backend))
	s.AddTool(extractLinksTool(), extractLinksHandler(backend))
	s.AddTool(graphTool(), graphHandler(backend))
}

// RegisterWriteTools adds the tools that change entries.
func RegisterWriteTools(s *server.MCPServer, backend Backend) {
	s.AddTool(createEntryTool(), createEntryHandler(backend))
	s.AddTool(updateEntryTool(), updateEntryHandler(backend))
	s.AddTool(deleteEntryTool(), deleteEntryHandler(backend))
}

// --- list_organizations ---

func listOrganizationsTool() mcp.Tool {
	return mcp.NewTool("list_organizations",
		mcp.WithDescription("List the organizations of the knowledge base."),
	)
}

func listOrganizationsHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgs, err := backend.ListOrganizations(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatAll(orgs, func(o *service.Organization) string {
			return fmt.Sprintf("%s  %s", o.ID, o.Name)
		})
	}
}

// --- list_groups ---

func listGroupsTool() mcp.Tool {
	return mcp.NewTool("list_groups",
		mcp.WithDescription("List the groups of an organization."),
		mcp.WithString("organization_id",
			mcp.Description("Organization ID"),
			mcp.Required(),
		),
	)
}

func listGroupsHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgID, err := required(req, "organization_id")
		if err != nil {
			return toolError(err)
		}

		groups, err := backend.ListGroups(ctx, orgID)
		if err != nil {
			return toolError(err)
		}
		return formatAll(groups, func(g *service.Group) string {
			return fmt.Sprintf("%s  %s", g.ID, g.Name)
		})
	}
}

// --- list_entries ---

func listEntriesTool() mcp.Tool {
	return mcp.NewTool("list_entries",
		mcp.WithDescription("List the entries of a group with the number of entries each one links to."),
		mcp.WithString("group_id",
			mcp.Description("Group ID"),
			mcp.Required(),
		),
	)
}

func listEntriesHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		groupID, err := required(req, "group_id")
		if err != nil {
			return toolError(err)
		}

		entries, err := backend.ListEntries(ctx, groupID)
		if err != nil {
			return toolError(err)
		}
		return formatAll(entries, func(e *service.Entry) string {
			return fmt.Sprintf("%s  %s  v%d  %d links", e.ID, e.Name, e.Version, len(e.Links))
		})
	}
}

// --- get_entry ---

func getEntryTool() mcp.Tool {
	return mcp.NewTool("get_entry",
		mcp.WithDescription("Read an entry: its name, version, links and body. Links in the body are written as [[Name]]."),
		mcp.WithString("entry_id",
			mcp.Description("Entry ID"),
			mcp.Required(),
		),
	)
}

func getEntryHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := required(req, "entry_id")
		if err != nil {
			return toolError(err)
		}

		entry, err := backend.GetEntry(ctx, id)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatEntry(entry)), nil
	}
}

// --- backlinks ---

func backlinksTool() mcp.Tool {
	return mcp.NewTool("backlinks",
		mcp.WithDescription("List the entries that link to an entry."),
		mcp.WithString("entry_id",
			mcp.Description("Entry ID"),
			mcp.Required(),
		),
	)
}

func backlinksHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := required(req, "entry_id")
		if err != nil {
			return toolError(err)
		}

		backlinks, err := backend.ListBacklinks(ctx, id)
		if err != nil {
			return toolError(err)
		}
		return formatAll(backlinks, formatCandidate)
	}
}

// --- suggest ---

func suggestTool() mcp.Tool {
	return mcp.NewTool("suggest",
		mcp.WithDescription("Find entries that can be linked from an entry, by a case-insensitive substring of their name."),
		mcp.WithString("organization_id",
			mcp.Description("Organization ID"),
			mcp.Required(),
		),
		mcp.WithString("query",
			mcp.Description("Part of the entry name. Empty lists every entry."),
		),
		mcp.WithString("exclude_entry_id",
			mcp.Description("Entry being edited; it is never suggested"),
		),
	)
}

func suggestHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgID, err := required(req, "organization_id")
		if err != nil {
			return toolError(err)
		}
		exclude := req.GetString("exclude_entry_id", "")

		candidates, err := backend.ListCandidates(ctx, orgID, exclude)
		if err != nil {
			return toolError(err)
		}

		suggester := linker.NewSuggester(pool(candidates), exclude)
		text := "{{" + req.GetString("query", "")
		suggester.Update(text, len(text))

		return formatAll(suggester.Suggestions(), formatCandidate)
	}
}

// --- extract_links ---

func extractLinksTool() mcp.Tool {
	return mcp.NewTool("extract_links",
		mcp.WithDescription("Show which entries a text would link to if saved in an organization. Unknown names are reported as unresolved."),
		mcp.WithString("organization_id",
			mcp.Description("Organization ID"),
			mcp.Required(),
		),
		mcp.WithString("text",
			mcp.Description("Text containing [[Name]] links"),
			mcp.Required(),
		),
		mcp.WithString("exclude_entry_id",
			mcp.Description("Entry the text belongs to; it never links to itself"),
		),
	)
}

func extractLinksHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgID, err := required(req, "organization_id")
		if err != nil {
			return toolError(err)
		}
		text := req.GetString("text", "")
		exclude := req.GetString("exclude_entry_id", "")

		candidates, err := backend.ListCandidates(ctx, orgID, exclude)
		if err != nil {
			return toolError(err)
		}

		linked := linker.Extract(text, pool(candidates))
		resolved := make(map[string]bool, len(linked))
		for _, c := range linked {
			resolved[c.Name] = true
		}

		var sb strings.Builder
		for _, c := range linked {
			sb.WriteString(formatCandidate(c) + "\n")
		}
		for _, name := range linker.Names(text) {
			if !resolved[name] {
				fmt.Fprintf(&sb, "unresolved  %s\n", name)
			}
		}
		if sb.Len() == 0 {
			return mcp.NewToolResultText("No links."), nil
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- entry_graph ---

func graphTool() mcp.Tool {
	return mcp.NewTool("entry_graph",
		mcp.WithDescription("Return the link graph of an organization as JSON nodes and edges."),
		mcp.WithString("organization_id",
			mcp.Description("Organization ID"),
			mcp.Required(),
		),
	)
}

func graphHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgID, err := required(req, "organization_id")
		if err != nil {
			return toolError(err)
		}

		graph, err := backend.ProjectGraph(ctx, orgID)
		if err != nil {
			return toolError(err)
		}

		data, err := json.Marshal(graph)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

// --- create_entry ---

func createEntryTool() mcp.Tool {
	return mcp.NewTool("create_entry",
		mcp.WithDescription("Create an entry in a group. [[Name]] links in the content are resolved against the organization."),
		mcp.WithString("group_id",
			mcp.Description("Group ID"),
			mcp.Required(),
		),
		mcp.WithString("name",
			mcp.Description("Entry name"),
			mcp.Required(),
		),
		mcp.WithString("content",
			mcp.Description("Entry body"),
		),
	)
}

func createEntryHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		groupID, err := required(req, "group_id")
		if err != nil {
			return toolError(err)
		}
		name, err := required(req, "name")
		if err != nil {
			return toolError(err)
		}

		entry, err := backend.CreateEntry(ctx, groupID, name, req.GetString("content", ""))
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatEntry(entry)), nil
	}
}

// --- update_entry ---

func updateEntryTool() mcp.Tool {
	return mcp.NewTool("update_entry",
		mcp.WithDescription("Rename an entry and/or replace its body. Renaming rewrites the links of every entry that references it."),
		mcp.WithString("entry_id",
			mcp.Description("Entry ID"),
			mcp.Required(),
		),
		mcp.WithString("name",
			mcp.Description("New name"),
		),
		mcp.WithString("content",
			mcp.Description("New body"),
		),
		mcp.WithNumber("version",
			mcp.Description("Current version plus one. Omit to overwrite without a version check."),
		),
	)
}

func updateEntryHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := required(req, "entry_id")
		if err != nil {
			return toolError(err)
		}

		update := service.UpdateEntryRequest{}
		args := req.GetArguments()
		if _, ok := args["name"]; ok {
			name := req.GetString("name", "")
			update.Name = &name
		}
		if _, ok := args["content"]; ok {
			content := req.GetString("content", "")
			update.Content = &content
		}
		if update.Name == nil && update.Content == nil {
			return toolError(fmt.Errorf("name or content is required"))
		}
		if _, ok := args["version"]; ok {
			version := int64(req.GetInt("version", int(service.OverwriteVersion)))
			update.Version = &version
		}

		entry, err := backend.UpdateEntry(ctx, id, update)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatEntry(entry)), nil
	}
}

// --- delete_entry ---

func deleteEntryTool() mcp.Tool {
	return mcp.NewTool("delete_entry",
		mcp.WithDescription("Delete an entry. Links to it are removed from every entry that references it."),
		mcp.WithString("entry_id",
			mcp.Description("Entry ID"),
			mcp.Required(),
		),
	)
}

func deleteEntryHandler(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := required(req, "entry_id")
		if err != nil {
			return toolError(err)
		}

		if err := backend.DeleteEntry(ctx, id); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText("Deleted " + id), nil
	}
}

// --- helpers ---

func required(req mcp.CallToolRequest, name string) (string, error) {
	value := req.GetString(name, "")
	if value == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return value, nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func formatAll[T any](items []T, format func(T) string) (*mcp.CallToolResult, error) {
	if len(items) == 0 {
		return mcp.NewToolResultText("No results."), nil
	}
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(format(item))
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatCandidate(c linker.Candidate) string {
	return fmt.Sprintf("%s  %s", c.ID, c.Name)
}

func formatEntry(e *service.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "id: %s\nname: %s\nversion: %d\n", e.ID, e.Name, e.Version)
	if len(e.Links) > 0 {
		fmt.Fprintf(&sb, "links: %s\n", strings.Join(e.Links, ", "))
	}
	if e.FileName != "" {
		fmt.Fprintf(&sb, "file: %s\n", e.FileName)
	}
	sb.WriteString("\n" + e.Content)
	return sb.String()
}

func pool(candidates []*service.Candidate) []linker.Candidate {
	res := make([]linker.Candidate, 0, len(candidates))
	for _, c := range candidates {
		res = append(res, linker.Candidate{ID: c.ID, Name: c.Name})
	}
	return res
}
