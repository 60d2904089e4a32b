package model

import "time"

// EntryBackup is the state of an entry before an update.
// A backup is written for every version that gets replaced, so any earlier version can be restored.
type EntryBackup struct {
	EntryID        string `gorm:"primaryKey;uuid;not null"`
	Version        int64  `gorm:"primaryKey"`
	OrganizationID string `gorm:"uuid;not null"`
	Name           string
	Content        []byte
	Compression    string
	UpdatedBy      string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"index:idx_entry_backups_created_at"`
}

func (EntryBackup) TableName() string {
	return "entry_backups"
}
