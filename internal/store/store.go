package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/knowledge/internal/model"
)

var (
	// ErrRecordNotFound is returned when a lookup by id finds nothing.
	ErrRecordNotFound = errors.New("record not found")
)

type Store interface {
	OrganizationStore
	GroupStore
	EntryStore
	LinkStore
	EntryBackupStore
	// Transaction runs f inside a database transaction. f receives a store bound to the transaction.
	Transaction(ctx context.Context, f func(tx Store) error) error
	// Snapshot runs f inside a read transaction that sees a single consistent state.
	Snapshot(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type OrganizationStore interface {
	// CreateOrganization creates a new organization.
	CreateOrganization(ctx context.Context, org *model.Organization) error
	// GetOrganization retrieves an organization by ID.
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	// ListOrganizations retrieves all organizations.
	ListOrganizations(ctx context.Context) ([]*model.Organization, error)
}

type GroupStore interface {
	// CreateGroup creates a new group.
	CreateGroup(ctx context.Context, group *model.Group) error
	// GetGroup retrieves a group by ID.
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	// ListGroups retrieves the groups of an organization.
	ListGroups(ctx context.Context, organizationID string) ([]*model.Group, error)
}

type EntryStore interface {
	// CreateEntry creates a new entry.
	CreateEntry(ctx context.Context, entry *model.Entry) error
	// GetEntry retrieves an entry by ID.
	GetEntry(ctx context.Context, id string) (*model.Entry, error)
	// ListEntries retrieves the entries of a group.
	ListEntries(ctx context.Context, groupID string) ([]*model.Entry, error)
	// ListOrganizationEntries retrieves every entry of an organization.
	ListOrganizationEntries(ctx context.Context, organizationID string) ([]*model.Entry, error)
	// ListEntriesFromIDs retrieves a list of entries by IDs.
	ListEntriesFromIDs(ctx context.Context, ids []string) ([]*model.Entry, error)
	// ListCandidates retrieves the linkable entries of an organization with their group names.
	ListCandidates(ctx context.Context, organizationID string) ([]*model.EntryCandidate, error)
	// UpdateEntry saves the name, body and version of an entry. The attached file is left alone.
	UpdateEntry(ctx context.Context, entry *model.Entry) error
	// SetEntryFile records the attached file of an entry without touching the other columns.
	SetEntryFile(ctx context.Context, id, fileKey, fileName string) error
	// DeleteEntry deletes an entry by ID.
	DeleteEntry(ctx context.Context, id string) error
}

type LinkStore interface {
	// ListLinks retrieves every link of an organization.
	ListLinks(ctx context.Context, organizationID string) ([]*model.Link, error)
	// ListOutgoingLinks retrieves the link set of an entry.
	ListOutgoingLinks(ctx context.Context, sourceID string) ([]*model.Link, error)
	// ListBacklinks retrieves the links whose target is the given entry.
	ListBacklinks(ctx context.Context, targetID string) ([]*model.Link, error)
	// CreateLinks adds links.
	CreateLinks(ctx context.Context, links []*model.Link) error
	// DeleteLinks removes the given targets from the link set of sourceID.
	DeleteLinks(ctx context.Context, sourceID string, targetIDs []string) error
	// DeleteOutgoingLinks clears the link set of sourceID.
	DeleteOutgoingLinks(ctx context.Context, sourceID string) error
	// DeleteLinksToTarget removes targetID from every link set and returns the number of sets changed.
	DeleteLinksToTarget(ctx context.Context, targetID string) (int64, error)
}

type EntryBackupStore interface {
	// CreateEntryBackup creates a new entry backup.
	CreateEntryBackup(ctx context.Context, backup *model.EntryBackup) error
	// ListEntryBackups retrieves the backups of an entry, newest first.
	ListEntryBackups(ctx context.Context, entryID string) ([]*model.EntryBackup, error)
	// GetEntryBackup retrieves an entry backup by entry ID and version.
	GetEntryBackup(ctx context.Context, entryID string, version int64) (*model.EntryBackup, error)
	// DeleteEntryBackups deletes every backup of an entry.
	DeleteEntryBackups(ctx context.Context, entryID string) error
	// DeleteEntryBackupsBefore deletes backups created before the given time.
	DeleteEntryBackupsBefore(ctx context.Context, before time.Time) (int64, error)
}
