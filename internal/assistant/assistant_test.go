package assistant

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	knowledge "github.com/emrgen/knowledge"
	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/cache"
	"github.com/emrgen/knowledge/internal/compress"
	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/notify"
	"github.com/emrgen/knowledge/internal/server"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/emrgen/knowledge/internal/storage"
	"github.com/emrgen/knowledge/internal/store"
	"github.com/emrgen/knowledge/internal/tester"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	client *knowledge.Client
	org    *service.Organization
	group  *service.Group
	alpha  *service.Entry
	beta   *service.Entry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st := store.NewGormStore(tester.TestDB(t))
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	entries := service.NewEntryService(compress.NewNop(), st, cache.NewNop(), notify.Discard{}, files)
	srv := httptest.NewServer(server.NewRouter(&server.App{
		Organizations: service.NewOrganizationService(st),
		Entries:       entries,
		Backups:       service.NewEntryBackupService(st, entries),
		Verifier:      auth.NewHeaderVerifier(),
		Subscriptions: notify.NewHub(),
	}))
	t.Cleanup(srv.Close)

	f := &fixture{client: knowledge.NewClient(srv.URL, "alice", nil)}
	f.org, err = f.client.CreateOrganization(ctx, "Acme")
	require.NoError(t, err)
	f.group, err = f.client.CreateGroup(ctx, f.org.ID, "Notes")
	require.NoError(t, err)
	f.alpha, err = f.client.CreateEntry(ctx, f.group.ID, "Alpha", "first")
	require.NoError(t, err)
	f.beta, err = f.client.CreateEntry(ctx, f.group.ID, "Beta", "see [[Alpha]]")
	require.NoError(t, err)

	return f
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestReadTools(t *testing.T) {
	f := newFixture(t)

	text, isErr := call(t, listEntriesHandler(f.client), map[string]any{"group_id": f.group.ID})
	assert.False(t, isErr)
	assert.Contains(t, text, "Alpha  v1  0 links")
	assert.Contains(t, text, "Beta  v1  1 links")

	text, _ = call(t, backlinksHandler(f.client), map[string]any{"entry_id": f.alpha.ID})
	assert.Equal(t, f.beta.ID+"  Beta\n", text)

	text, _ = call(t, suggestHandler(f.client), map[string]any{
		"organization_id":  f.org.ID,
		"query":            "ALP",
		"exclude_entry_id": f.beta.ID,
	})
	assert.Equal(t, f.alpha.ID+"  Alpha\n", text)

	text, _ = call(t, suggestHandler(f.client), map[string]any{
		"organization_id":  f.org.ID,
		"query":            "alp",
		"exclude_entry_id": f.alpha.ID,
	})
	assert.Equal(t, "No results.", text)

	text, _ = call(t, extractLinksHandler(f.client), map[string]any{
		"organization_id": f.org.ID,
		"text":            "[[Beta]] and [[Gamma]]",
	})
	assert.Equal(t, f.beta.ID+"  Beta\nunresolved  Gamma\n", text)

	text, _ = call(t, graphHandler(f.client), map[string]any{"organization_id": f.org.ID})
	var graph linker.Graph
	require.NoError(t, json.Unmarshal([]byte(text), &graph))
	assert.Len(t, graph.Nodes, 2)
	assert.Equal(t, []linker.Edge{{Source: f.beta.ID, Target: f.alpha.ID}}, graph.Edges)

	text, isErr = call(t, getEntryHandler(f.client), map[string]any{})
	assert.True(t, isErr)
	assert.Equal(t, "entry_id is required", text)
}

func TestWriteTools(t *testing.T) {
	f := newFixture(t)

	text, isErr := call(t, updateEntryHandler(f.client), map[string]any{
		"entry_id": f.alpha.ID,
		"name":     "Gamma",
		"version":  2,
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "name: Gamma")

	beta, err := f.client.GetEntry(context.Background(), f.beta.ID)
	require.NoError(t, err)
	assert.Equal(t, "see [[Gamma]]", beta.Content)

	// stale version
	text, isErr = call(t, updateEntryHandler(f.client), map[string]any{
		"entry_id": f.alpha.ID,
		"content":  "changed",
		"version":  2,
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "409")

	text, isErr = call(t, updateEntryHandler(f.client), map[string]any{"entry_id": f.alpha.ID})
	assert.True(t, isErr)
	assert.Equal(t, "name or content is required", text)

	text, isErr = call(t, createEntryHandler(f.client), map[string]any{
		"group_id": f.group.ID,
		"name":     "Delta",
		"content":  "about [[Gamma]]",
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "links: "+f.alpha.ID)

	_, isErr = call(t, deleteEntryHandler(f.client), map[string]any{"entry_id": f.alpha.ID})
	assert.False(t, isErr)

	beta, err = f.client.GetEntry(context.Background(), f.beta.ID)
	require.NoError(t, err)
	assert.Empty(t, beta.Links)
}

func TestNewServer(t *testing.T) {
	s := NewServer(newFixture(t).client, "test")
	assert.NotNil(t, s)
}
