package store

import (
	"context"
	"testing"

	"github.com/emrgen/knowledge/internal/model"
	"github.com/emrgen/knowledge/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	st := NewGormStore(tester.TestDB(t))
	ctx := context.Background()
	require.NoError(t, st.CreateOrganization(ctx, &model.Organization{ID: "org", Name: "Acme", OwnerID: "alice"}))
	require.NoError(t, st.CreateGroup(ctx, &model.Group{ID: "group", OrganizationID: "org", Name: "Notes"}))

	return st
}

func TestGormStore_UpdateEntryKeepsAttachedFile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateEntry(ctx, &model.Entry{
		ID:             "a",
		OrganizationID: "org",
		GroupID:        "group",
		Name:           "A",
		Content:        []byte("body"),
		OwnerID:        "alice",
		Version:        1,
	}))

	// the update was read before the file was attached
	stale, err := st.GetEntry(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, st.SetEntryFile(ctx, "a", "org/a/new/report.pdf", "report.pdf"))

	stale.Name = "Alpha"
	stale.Content = []byte("new body")
	stale.Version++
	require.NoError(t, st.UpdateEntry(ctx, stale))

	got, err := st.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)
	assert.Equal(t, "new body", string(got.Content))
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "org/a/new/report.pdf", got.FileKey)
	assert.Equal(t, "report.pdf", got.FileName)
	assert.Equal(t, "alice", got.OwnerID)
}

func TestGormStore_Snapshot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateEntry(ctx, &model.Entry{ID: "a", OrganizationID: "org", GroupID: "group", Name: "A", OwnerID: "alice"}))

	var candidates []*model.EntryCandidate
	err := st.Snapshot(ctx, func(tx Store) error {
		var err error
		candidates, err = tx.ListCandidates(ctx, "org")
		return err
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Notes", candidates[0].GroupName)
}
