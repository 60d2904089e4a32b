package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryBackupService(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	target := f.create(t, alice, "Target", "")
	a := f.create(t, alice, "A", "first [[Target]]")

	_, err := f.entries.UpdateEntry(ctx, alice, UpdateEntryRequest{EntryID: a.ID, Name: ptr("A2"), Content: ptr("second")})
	require.NoError(t, err)
	_, err = f.entries.UpdateEntry(ctx, alice, UpdateEntryRequest{EntryID: a.ID, Content: ptr("third")})
	require.NoError(t, err)

	backups, err := f.backups.ListEntryBackups(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, int64(2), backups[0].Version)
	assert.Equal(t, int64(1), backups[1].Version)
	assert.Empty(t, backups[0].Content)

	first, err := f.backups.GetEntryBackup(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", first.Name)
	assert.Equal(t, "first [[Target]]", first.Content)

	_, err = f.backups.GetEntryBackup(ctx, a.ID, 9)
	assert.ErrorIs(t, err, ErrBackupNotFound)

	_, err = f.backups.RestoreEntryBackup(ctx, bob, a.ID, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	restored, err := f.backups.RestoreEntryBackup(ctx, alice, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", restored.Name)
	assert.Equal(t, "first [[Target]]", restored.Content)
	assert.Equal(t, int64(4), restored.Version)
	assert.Equal(t, []string{target.ID}, restored.Links)

	backups, err = f.backups.ListEntryBackups(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, backups, 3)
}
