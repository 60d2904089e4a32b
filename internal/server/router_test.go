package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/cache"
	"github.com/emrgen/knowledge/internal/compress"
	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/notify"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/emrgen/knowledge/internal/storage"
	"github.com/emrgen/knowledge/internal/store"
	"github.com/emrgen/knowledge/internal/tester"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewGormStore(tester.TestDB(t))
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	entries := service.NewEntryService(compress.NewNop(), st, cache.NewNop(), notify.Discard{}, files)
	router := NewRouter(&App{
		Organizations: service.NewOrganizationService(st),
		Entries:       entries,
		Backups:       service.NewEntryBackupService(st, entries),
		Verifier:      auth.NewHeaderVerifier(),
		AllowedRoles:  []string{"member"},
		Subscriptions: notify.NewHub(),
	})

	return &api{t: t, router: router}
}

func (a *api) request(user, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(auth.HeaderUserID, user)
		req.Header.Set(auth.HeaderUserRoles, "member")
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *api) decode(rec *httptest.ResponseRecorder, v any) {
	a.t.Helper()
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (a *api) setup() (orgID, groupID string) {
	var org service.Organization
	rec := a.request("alice", http.MethodPost, "/v1/organizations", gin.H{"name": "Acme"})
	require.Equal(a.t, http.StatusCreated, rec.Code)
	a.decode(rec, &org)

	var group service.Group
	rec = a.request("alice", http.MethodPost, "/v1/organizations/"+org.ID+"/groups", gin.H{"name": "Notes"})
	require.Equal(a.t, http.StatusCreated, rec.Code)
	a.decode(rec, &group)

	return org.ID, group.ID
}

func (a *api) createEntry(user, groupID, name, content string) service.Entry {
	var entry service.Entry
	rec := a.request(user, http.MethodPost, "/v1/groups/"+groupID+"/entries", gin.H{"name": name, "content": content})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	a.decode(rec, &entry)
	return entry
}

func TestRouter_Health(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusOK, a.request("", http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, a.request("", http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.request("", http.MethodGet, "/v1/organizations", nil).Code)
}

func TestRouter_LinkLifecycle(t *testing.T) {
	a := newAPI(t)
	orgID, groupID := a.setup()

	target := a.createEntry("alice", groupID, "A", "target")
	source := a.createEntry("alice", groupID, "B", "links to [[A]]")
	assert.Equal(t, []string{target.ID}, source.Links)

	var candidates []service.Candidate
	rec := a.request("alice", http.MethodGet, "/v1/organizations/"+orgID+"/candidates?exclude="+source.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &candidates)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Notes/A", candidates[0].FullName)

	var graph []linker.LinkedEntry
	rec = a.request("alice", http.MethodGet, "/v1/organizations/"+orgID+"/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &graph)
	assert.Equal(t, []linker.LinkedEntry{
		{ID: target.ID, Name: "A", LinkedEntries: []string{}},
		{ID: source.ID, Name: "B", LinkedEntries: []string{target.ID}},
	}, graph)

	var projection linker.Graph
	rec = a.request("alice", http.MethodGet, "/v1/organizations/"+orgID+"/graph/projection", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &projection)
	assert.Equal(t, []linker.Edge{{Source: source.ID, Target: target.ID}}, projection.Edges)

	// rename
	var renamed service.Entry
	rec = a.request("alice", http.MethodPut, "/v1/entries/"+target.ID, gin.H{"name": "Alpha", "version": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a.decode(rec, &renamed)
	assert.Equal(t, int64(2), renamed.Version)

	var got service.Entry
	rec = a.request("alice", http.MethodGet, "/v1/entries/"+source.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &got)
	assert.Equal(t, "links to [[Alpha]]", got.Content)

	var backlinks []linker.Candidate
	rec = a.request("alice", http.MethodGet, "/v1/entries/"+target.ID+"/backlinks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &backlinks)
	assert.Equal(t, []linker.Candidate{{ID: source.ID, Name: "B"}}, backlinks)

	// delete
	rec = a.request("alice", http.MethodDelete, "/v1/entries/"+target.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.request("alice", http.MethodGet, "/v1/entries/"+source.ID, nil)
	a.decode(rec, &got)
	assert.Empty(t, got.Links)
}

func TestRouter_Errors(t *testing.T) {
	a := newAPI(t)
	_, groupID := a.setup()
	entry := a.createEntry("alice", groupID, "A", "")

	tests := []struct {
		name   string
		user   string
		method string
		path   string
		body   any
		status int
	}{
		{name: "missing entry", user: "alice", method: http.MethodGet, path: "/v1/entries/missing", status: http.StatusNotFound},
		{name: "missing organization", user: "alice", method: http.MethodGet, path: "/v1/organizations/missing/graph", status: http.StatusNotFound},
		{name: "missing group", user: "alice", method: http.MethodPost, path: "/v1/groups/missing/entries", body: gin.H{"name": "x"}, status: http.StatusNotFound},
		{name: "invalid name", user: "alice", method: http.MethodPost, path: "/v1/groups/" + groupID + "/entries", body: gin.H{"name": "[x]"}, status: http.StatusBadRequest},
		{name: "not owner update", user: "bob", method: http.MethodPut, path: "/v1/entries/" + entry.ID, body: gin.H{"content": "x"}, status: http.StatusForbidden},
		{name: "not owner delete", user: "bob", method: http.MethodDelete, path: "/v1/entries/" + entry.ID, status: http.StatusForbidden},
		{name: "stale version", user: "alice", method: http.MethodPut, path: "/v1/entries/" + entry.ID, body: gin.H{"content": "x", "version": 1}, status: http.StatusConflict},
		{name: "invalid version", user: "alice", method: http.MethodGet, path: "/v1/entries/" + entry.ID + "/backups/abc", status: http.StatusBadRequest},
		{name: "missing backup", user: "alice", method: http.MethodGet, path: "/v1/entries/" + entry.ID + "/backups/7", status: http.StatusNotFound},
		{name: "missing file", user: "alice", method: http.MethodGet, path: "/v1/entries/" + entry.ID + "/file", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.request(tt.user, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			a.decode(rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRouter_Backups(t *testing.T) {
	a := newAPI(t)
	_, groupID := a.setup()
	entry := a.createEntry("alice", groupID, "A", "one")

	rec := a.request("alice", http.MethodPut, "/v1/entries/"+entry.ID, gin.H{"content": "two"})
	require.Equal(t, http.StatusOK, rec.Code)

	var backups []service.EntryBackup
	rec = a.request("alice", http.MethodGet, "/v1/entries/"+entry.ID+"/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &backups)
	require.Len(t, backups, 1)

	var restored service.Entry
	rec = a.request("alice", http.MethodPost, "/v1/entries/"+entry.ID+"/backups/1/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &restored)
	assert.Equal(t, "one", restored.Content)
	assert.Equal(t, int64(3), restored.Version)
}

func TestRouter_Files(t *testing.T) {
	a := newAPI(t)
	_, groupID := a.setup()
	entry := a.createEntry("alice", groupID, "A", "")

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPut, "/v1/entries/"+entry.ID+"/file", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set(auth.HeaderUserID, "alice")
	req.Header.Set(auth.HeaderUserRoles, "member")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.request("alice", http.MethodGet, "/v1/entries/"+entry.ID+"/file", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")

	rec = a.request("alice", http.MethodDelete, "/v1/entries/"+entry.ID+"/file", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.request("alice", http.MethodGet, "/v1/entries/"+entry.ID+"/file", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
