package service

import (
	"context"
	"time"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/store"
)

// EntryBackup is an earlier version of an entry. Content is empty in listings.
type EntryBackup struct {
	EntryID   string    `json:"entryId"`
	Version   int64     `json:"version"`
	Name      string    `json:"name"`
	Content   string    `json:"content,omitempty"`
	UpdatedBy string    `json:"updatedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEntryBackupService creates a new entry backup service
func NewEntryBackupService(store store.Store, entries *EntryService) *EntryBackupService {
	return &EntryBackupService{
		store:   store,
		entries: entries,
	}
}

// EntryBackupService lists and restores the versions an entry had before its updates.
type EntryBackupService struct {
	store   store.Store
	entries *EntryService
}

// ListEntryBackups lists the backups of an entry, newest first
func (b *EntryBackupService) ListEntryBackups(ctx context.Context, entryID string) ([]*EntryBackup, error) {
	if _, err := b.store.GetEntry(ctx, entryID); err != nil {
		return nil, translate(err, ErrEntryNotFound)
	}

	backups, err := b.store.ListEntryBackups(ctx, entryID)
	if err != nil {
		return nil, err
	}

	res := make([]*EntryBackup, 0, len(backups))
	for _, backup := range backups {
		res = append(res, &EntryBackup{
			EntryID:   backup.EntryID,
			Version:   backup.Version,
			Name:      backup.Name,
			UpdatedBy: backup.UpdatedBy,
			CreatedAt: backup.CreatedAt,
		})
	}

	return res, nil
}

// GetEntryBackup gets the backup of an entry at a version
func (b *EntryBackupService) GetEntryBackup(ctx context.Context, entryID string, version int64) (*EntryBackup, error) {
	backup, err := b.store.GetEntryBackup(ctx, entryID, version)
	if err != nil {
		return nil, translate(err, ErrBackupNotFound)
	}

	content, err := decode(backup.Compression, backup.Content)
	if err != nil {
		return nil, err
	}

	return &EntryBackup{
		EntryID:   backup.EntryID,
		Version:   backup.Version,
		Name:      backup.Name,
		Content:   content,
		UpdatedBy: backup.UpdatedBy,
		CreatedAt: backup.CreatedAt,
	}, nil
}

// RestoreEntryBackup overwrites an entry with the name and body of one of its backups.
// The restore is a regular update, so the current state is backed up and links are recomputed.
func (b *EntryBackupService) RestoreEntryBackup(ctx context.Context, caller *auth.Identity, entryID string, version int64) (*Entry, error) {
	backup, err := b.GetEntryBackup(ctx, entryID, version)
	if err != nil {
		return nil, err
	}

	overwrite := OverwriteVersion
	return b.entries.UpdateEntry(ctx, caller, UpdateEntryRequest{
		EntryID: entryID,
		Name:    &backup.Name,
		Content: &backup.Content,
		Version: &overwrite,
	})
}
