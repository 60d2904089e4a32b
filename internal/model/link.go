package model

import "time"

// Link is one member of an entry's outgoing link set.
// The target index doubles as the inverse adjacency used when a target is renamed or deleted.
type Link struct {
	SourceID       string `gorm:"primaryKey;uuid;not null;index:idx_links_source_id"`
	TargetID       string `gorm:"primaryKey;uuid;not null;index:idx_links_target_id"`
	OrganizationID string `gorm:"uuid;not null;index:idx_links_organization_id"`
	CreatedAt      time.Time
}

func (l *Link) TableName() string {
	return "links"
}
