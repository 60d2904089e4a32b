package service

import (
	"context"
	"sync"
	"testing"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/cache"
	"github.com/emrgen/knowledge/internal/compress"
	"github.com/emrgen/knowledge/internal/notify"
	"github.com/emrgen/knowledge/internal/storage"
	"github.com/emrgen/knowledge/internal/store"
	"github.com/emrgen/knowledge/internal/tester"
	"github.com/stretchr/testify/require"
)

var (
	alice = &auth.Identity{UserID: "alice", Roles: []string{"member"}}
	bob   = &auth.Identity{UserID: "bob", Roles: []string{"member"}}
)

type recorder struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recorder) Broadcast(_ context.Context, msg *notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]string, 0, len(r.messages))
	for _, msg := range r.messages {
		events = append(events, msg.Event)
	}
	return events
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

type fixture struct {
	store    store.Store
	entries  *EntryService
	backups  *EntryBackupService
	orgs     *OrganizationService
	notifier *recorder
	files    *storage.LocalStore
	orgID    string
	groupID  string
}

func newFixture(t *testing.T, graphCache cache.GraphCache) *fixture {
	t.Helper()

	st := store.NewGormStore(tester.TestDB(t))
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	if graphCache == nil {
		graphCache = cache.NewNop()
	}

	f := &fixture{
		store:    st,
		notifier: &recorder{},
		files:    files,
		orgs:     NewOrganizationService(st),
	}
	f.entries = NewEntryService(compress.NewGZip(), st, graphCache, f.notifier, files)
	f.backups = NewEntryBackupService(st, f.entries)

	ctx := context.Background()
	org, err := f.orgs.CreateOrganization(ctx, alice, CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	group, err := f.orgs.CreateGroup(ctx, CreateGroupRequest{OrganizationID: org.ID, Name: "Notes"})
	require.NoError(t, err)

	f.orgID = org.ID
	f.groupID = group.ID

	return f
}

func (f *fixture) create(t *testing.T, caller *auth.Identity, name, content string) *Entry {
	t.Helper()

	entry, err := f.entries.CreateEntry(context.Background(), caller, CreateEntryRequest{
		GroupID: f.groupID,
		Name:    name,
		Content: content,
	})
	require.NoError(t, err)

	return entry
}

func (f *fixture) get(t *testing.T, id string) *Entry {
	t.Helper()

	entry, err := f.entries.GetEntry(context.Background(), id)
	require.NoError(t, err)

	return entry
}

func ptr[T any](v T) *T {
	return &v
}
