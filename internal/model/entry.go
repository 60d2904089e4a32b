package model

import (
	"time"
)

// Entry is a markdown document owned by a user and filed in a group.
// Content holds the body encoded with the compressor named by Compression.
type Entry struct {
	ID             string `gorm:"primaryKey;uuid;not null;"`
	OrganizationID string `gorm:"uuid;not null;index:idx_entries_organization_id"`
	GroupID        string `gorm:"uuid;not null;index:idx_entries_group_id"`
	Name           string `gorm:"not null"`
	Content        []byte
	Compression    string
	OwnerID        string `gorm:"uuid;not null"`
	FileKey        string // key of the attached file in file storage, empty when none
	FileName       string
	Version        int64 `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Entry) TableName() string {
	return "entries"
}

// HasFile reports whether a file is attached to the entry.
func (e *Entry) HasFile() bool {
	return e.FileKey != ""
}

// EntryCandidate is the projection of an entry used for linking and autocomplete.
type EntryCandidate struct {
	ID        string
	Name      string
	GroupName string
	CreatedAt time.Time
}
