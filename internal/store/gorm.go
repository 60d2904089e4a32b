package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/emrgen/knowledge/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	return g.db.WithContext(ctx).Create(org).Error
}

func (g *GormStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

func (g *GormStore) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	var orgs []*model.Organization
	err := g.db.WithContext(ctx).Order("name").Find(&orgs).Error
	return orgs, err
}

func (g *GormStore) CreateGroup(ctx context.Context, group *model.Group) error {
	return g.db.WithContext(ctx).Create(group).Error
}

func (g *GormStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

func (g *GormStore) ListGroups(ctx context.Context, organizationID string) ([]*model.Group, error) {
	var groups []*model.Group
	err := g.db.WithContext(ctx).Where("organization_id = ?", organizationID).Order("name").Find(&groups).Error
	return groups, err
}

func (g *GormStore) CreateEntry(ctx context.Context, entry *model.Entry) error {
	return g.db.WithContext(ctx).Create(entry).Error
}

func (g *GormStore) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	var entry model.Entry
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (g *GormStore) ListEntries(ctx context.Context, groupID string) ([]*model.Entry, error) {
	var entries []*model.Entry
	err := g.db.WithContext(ctx).Where("group_id = ?", groupID).Order("created_at").Find(&entries).Error
	return entries, err
}

func (g *GormStore) ListOrganizationEntries(ctx context.Context, organizationID string) ([]*model.Entry, error) {
	var entries []*model.Entry
	err := g.db.WithContext(ctx).Where("organization_id = ?", organizationID).Order("created_at").Find(&entries).Error
	return entries, err
}

func (g *GormStore) ListEntriesFromIDs(ctx context.Context, ids []string) ([]*model.Entry, error) {
	var entries []*model.Entry
	if len(ids) == 0 {
		return entries, nil
	}
	err := g.db.WithContext(ctx).Where("id in (?)", ids).Find(&entries).Error
	return entries, err
}

func (g *GormStore) ListCandidates(ctx context.Context, organizationID string) ([]*model.EntryCandidate, error) {
	var candidates []*model.EntryCandidate
	err := g.db.WithContext(ctx).
		Table("entries").
		Select("entries.id, entries.name, entries.created_at, entry_groups.name AS group_name").
		Joins("LEFT JOIN entry_groups ON entry_groups.id = entries.group_id").
		Where("entries.organization_id = ?", organizationID).
		Order("entries.name").
		Scan(&candidates).Error
	return candidates, err
}

func (g *GormStore) UpdateEntry(ctx context.Context, entry *model.Entry) error {
	return g.db.WithContext(ctx).Model(entry).
		Select("name", "content", "compression", "version", "updated_at").
		Updates(entry).Error
}

func (g *GormStore) SetEntryFile(ctx context.Context, id, fileKey, fileName string) error {
	return g.db.WithContext(ctx).Model(&model.Entry{}).Where("id = ?", id).
		Updates(map[string]interface{}{"file_key": fileKey, "file_name": fileName}).Error
}

func (g *GormStore) DeleteEntry(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Entry{}).Error
}

func (g *GormStore) ListLinks(ctx context.Context, organizationID string) ([]*model.Link, error) {
	var links []*model.Link
	err := g.db.WithContext(ctx).Where("organization_id = ?", organizationID).Find(&links).Error
	return links, err
}

func (g *GormStore) ListOutgoingLinks(ctx context.Context, sourceID string) ([]*model.Link, error) {
	var links []*model.Link
	err := g.db.WithContext(ctx).Where("source_id = ?", sourceID).Find(&links).Error
	return links, err
}

func (g *GormStore) ListBacklinks(ctx context.Context, targetID string) ([]*model.Link, error) {
	var links []*model.Link
	err := g.db.WithContext(ctx).Where("target_id = ?", targetID).Find(&links).Error
	return links, err
}

func (g *GormStore) CreateLinks(ctx context.Context, links []*model.Link) error {
	if len(links) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Create(&links).Error
}

func (g *GormStore) DeleteLinks(ctx context.Context, sourceID string, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).
		Where("source_id = ? AND target_id in (?)", sourceID, targetIDs).
		Delete(&model.Link{}).Error
}

func (g *GormStore) DeleteOutgoingLinks(ctx context.Context, sourceID string) error {
	return g.db.WithContext(ctx).Where("source_id = ?", sourceID).Delete(&model.Link{}).Error
}

func (g *GormStore) DeleteLinksToTarget(ctx context.Context, targetID string) (int64, error) {
	res := g.db.WithContext(ctx).Where("target_id = ?", targetID).Delete(&model.Link{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) CreateEntryBackup(ctx context.Context, backup *model.EntryBackup) error {
	return g.db.WithContext(ctx).Create(backup).Error
}

func (g *GormStore) ListEntryBackups(ctx context.Context, entryID string) ([]*model.EntryBackup, error) {
	var backups []*model.EntryBackup
	err := g.db.WithContext(ctx).Where("entry_id = ?", entryID).Order("version desc").Find(&backups).Error
	return backups, err
}

func (g *GormStore) GetEntryBackup(ctx context.Context, entryID string, version int64) (*model.EntryBackup, error) {
	var backup model.EntryBackup
	err := g.db.WithContext(ctx).Where("entry_id = ? AND version = ?", entryID, version).First(&backup).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &backup, nil
}

func (g *GormStore) DeleteEntryBackups(ctx context.Context, entryID string) error {
	return g.db.WithContext(ctx).Where("entry_id = ?", entryID).Delete(&model.EntryBackup{}).Error
}

func (g *GormStore) DeleteEntryBackupsBefore(ctx context.Context, before time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Where("created_at < ?", before).Delete(&model.EntryBackup{})
	if res.Error != nil {
		return 0, res.Error
	}

	logrus.Debugf("deleted %d entry backups created before %s", res.RowsAffected, before.Format(time.RFC3339))
	return res.RowsAffected, nil
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}

// Snapshot runs the reads of f against one snapshot of the database. On postgres the
// transaction is read-only and repeatable read; sqlite transactions already read a snapshot.
func (g *GormStore) Snapshot(ctx context.Context, f func(tx Store) error) error {
	var opts []*sql.TxOptions
	if g.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	}, opts...)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
