package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/cache"
	"github.com/emrgen/knowledge/internal/compress"
	"github.com/emrgen/knowledge/internal/model"
	"github.com/emrgen/knowledge/internal/notify"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/emrgen/knowledge/internal/storage"
	"github.com/emrgen/knowledge/internal/store"
	"github.com/emrgen/knowledge/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	runs    atomic.Int32
	release chan struct{}
}

func (b *blockingJob) Name() string     { return "blocking" }
func (b *blockingJob) Schedule() string { return "@every 1s" }
func (b *blockingJob) Run() {
	b.runs.Add(1)
	<-b.release
}

func TestTaskExecutor_SkipsRunningJob(t *testing.T) {
	job := &blockingJob{release: make(chan struct{})}
	executor := NewTaskExecutor(job)

	done := make(chan bool)
	go func() { done <- executor.execute(job) }()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.False(t, executor.execute(job), "a running job is not started twice")

	close(job.release)
	assert.True(t, <-done)
	assert.True(t, executor.execute(job))
	assert.Equal(t, int32(2), job.runs.Load())
}

func TestTaskExecutor_Run(t *testing.T) {
	job := &blockingJob{release: make(chan struct{})}
	close(job.release)

	executor := NewTaskExecutor(job)
	require.NoError(t, executor.Run())
	defer executor.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

type invalidJob struct{}

func (invalidJob) Name() string     { return "invalid" }
func (invalidJob) Schedule() string { return "every now and then" }
func (invalidJob) Run()             {}

func TestTaskExecutor_InvalidSchedule(t *testing.T) {
	assert.Error(t, NewTaskExecutor(invalidJob{}).Run())
}

func TestLinkReconciler(t *testing.T) {
	ctx := context.Background()
	st := store.NewGormStore(tester.TestDB(t))
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	orgs := service.NewOrganizationService(st)
	entries := service.NewEntryService(compress.NewNop(), st, cache.NewNop(), notify.Discard{}, files)
	caller := &auth.Identity{UserID: "alice"}

	org, err := orgs.CreateOrganization(ctx, caller, service.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	group, err := orgs.CreateGroup(ctx, service.CreateGroupRequest{OrganizationID: org.ID, Name: "Notes"})
	require.NoError(t, err)

	// the first entry references the second before it exists
	a, err := entries.CreateEntry(ctx, caller, service.CreateEntryRequest{GroupID: group.ID, Name: "A", Content: "[[B]]"})
	require.NoError(t, err)
	b, err := entries.CreateEntry(ctx, caller, service.CreateEntryRequest{GroupID: group.ID, Name: "B"})
	require.NoError(t, err)

	reconciler := NewLinkReconciler("@every 10m", orgs, entries)
	assert.Equal(t, "@every 10m", reconciler.Schedule())

	repaired, err := reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	got, err := entries.GetEntry(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.Links)
}

func TestBackupCleaner(t *testing.T) {
	ctx := context.Background()
	st := store.NewGormStore(tester.TestDB(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for version, age := range []time.Duration{48 * time.Hour, 30 * time.Hour, time.Hour} {
		require.NoError(t, st.CreateEntryBackup(ctx, &model.EntryBackup{
			EntryID:        "entry",
			Version:        int64(version + 1),
			OrganizationID: "org",
			UpdatedBy:      "alice",
			CreatedAt:      now.Add(-age),
		}))
	}

	cleaner := NewBackupCleaner("@every 1h", 24*time.Hour, st)
	cleaner.now = func() time.Time { return now }

	removed, err := cleaner.Clean(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	backups, err := st.ListEntryBackups(ctx, "entry")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, int64(3), backups[0].Version)
}
