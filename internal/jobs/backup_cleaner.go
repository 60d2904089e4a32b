package jobs

import (
	"context"
	"time"

	"github.com/emrgen/knowledge/internal/store"
	"github.com/sirupsen/logrus"
)

var _ CronJob = (*BackupCleaner)(nil)

// BackupCleaner deletes entry backups older than the retention period.
type BackupCleaner struct {
	store     store.EntryBackupStore
	schedule  string
	retention time.Duration
	now       func() time.Time
}

// NewBackupCleaner creates a new BackupCleaner instance.
func NewBackupCleaner(schedule string, retention time.Duration, store store.EntryBackupStore) *BackupCleaner {
	return &BackupCleaner{
		store:     store,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
	}
}

func (c *BackupCleaner) Name() string {
	return "backup_cleaner"
}

func (c *BackupCleaner) Schedule() string {
	return c.schedule
}

func (c *BackupCleaner) Run() {
	if _, err := c.Clean(context.Background()); err != nil {
		logrus.Errorf("error deleting the backups: %v", err)
	}
}

// Clean deletes the expired backups and returns how many were removed.
func (c *BackupCleaner) Clean(ctx context.Context) (int64, error) {
	before := c.now().Add(-c.retention)
	removed, err := c.store.DeleteEntryBackupsBefore(ctx, before)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		logrus.Infof("removed %d backups created before %s", removed, before.Format(time.RFC3339))
	}

	return removed, nil
}
