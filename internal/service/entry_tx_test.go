package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/emrgen/knowledge/internal/cache"
	"github.com/emrgen/knowledge/internal/compress"
	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/model"
	"github.com/emrgen/knowledge/internal/store"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// failingStore lets the hooks fail entry writes made inside transactions.
type failingStore struct {
	store.Store
	updateEntry func(entry *model.Entry) error
	deleteEntry func(id string) error
}

func (s *failingStore) Transaction(ctx context.Context, f func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return f(&failingStore{Store: tx, updateEntry: s.updateEntry, deleteEntry: s.deleteEntry})
	})
}

func (s *failingStore) UpdateEntry(ctx context.Context, entry *model.Entry) error {
	if s.updateEntry != nil {
		if err := s.updateEntry(entry); err != nil {
			return err
		}
	}
	return s.Store.UpdateEntry(ctx, entry)
}

func (s *failingStore) DeleteEntry(ctx context.Context, id string) error {
	if s.deleteEntry != nil {
		if err := s.deleteEntry(id); err != nil {
			return err
		}
	}
	return s.Store.DeleteEntry(ctx, id)
}

func (f *fixture) useStore(st store.Store) {
	f.entries = NewEntryService(compress.NewGZip(), st, cache.NewNop(), f.notifier, f.files)
}

func (f *fixture) backupCount(t *testing.T, id string) int {
	t.Helper()

	backups, err := f.backups.ListEntryBackups(context.Background(), id)
	require.NoError(t, err)

	return len(backups)
}

// A rename that fails on its second referencer leaves every entry as it was.
func TestEntryService_RenameIsAllOrNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, alice, "A", "target")
	b := f.create(t, alice, "B", "[[A]]")
	c := f.create(t, bob, "C", "see [[A]]")
	f.notifier.reset()

	updates := 0
	f.useStore(&failingStore{
		Store: f.store,
		updateEntry: func(*model.Entry) error {
			updates++
			if updates == 2 {
				return errDiskFull
			}
			return nil
		},
	})

	_, err := f.entries.UpdateEntry(ctx, alice, UpdateEntryRequest{EntryID: a.ID, Name: ptr("Alpha")})
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 2, updates)

	gotA := f.get(t, a.ID)
	assert.Equal(t, "A", gotA.Name)
	assert.Equal(t, int64(1), gotA.Version)

	gotB := f.get(t, b.ID)
	assert.Equal(t, "[[A]]", gotB.Content)
	assert.Equal(t, int64(1), gotB.Version)
	assert.Equal(t, []string{a.ID}, gotB.Links)

	gotC := f.get(t, c.ID)
	assert.Equal(t, "see [[A]]", gotC.Content)
	assert.Equal(t, int64(1), gotC.Version)

	for _, id := range []string{a.ID, b.ID, c.ID} {
		assert.Zero(t, f.backupCount(t, id))
	}
	assert.Empty(t, f.notifier.messages)
}

// A delete that fails after the entry was unlinked from every link set leaves the links in place.
func TestEntryService_DeleteIsAllOrNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, alice, "A", "v1")
	_, err := f.entries.UpdateEntry(ctx, alice, UpdateEntryRequest{EntryID: a.ID, Content: ptr("v2")})
	require.NoError(t, err)
	b := f.create(t, bob, "B", "[[A]]")
	f.notifier.reset()

	f.useStore(&failingStore{
		Store:       f.store,
		deleteEntry: func(string) error { return errDiskFull },
	})

	err = f.entries.DeleteEntry(ctx, alice, a.ID)
	require.ErrorIs(t, err, errDiskFull)

	gotA := f.get(t, a.ID)
	assert.Equal(t, "v2", gotA.Content)
	assert.Equal(t, 1, f.backupCount(t, a.ID))

	gotB := f.get(t, b.ID)
	assert.Equal(t, []string{a.ID}, gotB.Links)

	backlinks, err := f.entries.ListBacklinks(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []linker.Candidate{{ID: b.ID, Name: "B"}}, backlinks)

	assert.Empty(t, f.notifier.messages)
}

// graphCacheHook runs beforeSet once, right before a graph payload is written back.
type graphCacheHook struct {
	*cache.Redis
	beforeSet func()
}

func (h *graphCacheHook) SetGraph(ctx context.Context, organizationID string, generation int64, entries []linker.LinkedEntry) (bool, error) {
	if hook := h.beforeSet; hook != nil {
		h.beforeSet = nil
		hook()
	}
	return h.Redis.SetGraph(ctx, organizationID, generation, entries)
}

func TestEntryService_GraphNotCachedAcrossDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	graphCache := &graphCacheHook{Redis: cache.NewRedis(client, 10*time.Minute)}
	f := newFixture(t, graphCache)
	ctx := context.Background()

	b := f.create(t, alice, "B", "")
	a := f.create(t, alice, "A", "[[B]]")

	// B is deleted after the graph was read and before it is cached
	graphCache.beforeSet = func() {
		require.NoError(t, f.entries.DeleteEntry(ctx, alice, b.ID))
	}
	entries, err := f.entries.GetGraph(ctx, f.orgID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = f.entries.GetGraph(ctx, f.orgID)
	require.NoError(t, err)
	assert.Equal(t, []linker.LinkedEntry{{ID: a.ID, Name: "A", LinkedEntries: []string{}}}, entries)

	// the fresh payload is cached
	_, ok, err := graphCache.GetGraph(ctx, f.orgID)
	require.NoError(t, err)
	assert.True(t, ok)
}
