package model

import "time"

// Organization is the tenancy boundary. Links and graphs never cross organizations.
type Organization struct {
	ID        string `gorm:"primaryKey;uuid;not null"`
	Name      string `gorm:"not null"`
	OwnerID   string `gorm:"uuid;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Organization) TableName() string {
	return "organizations"
}

// Group is a named collection of entries inside an organization.
type Group struct {
	ID             string `gorm:"primaryKey;uuid;not null"`
	OrganizationID string `gorm:"uuid;not null;index:idx_entry_groups_organization_id"`
	Name           string `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// groups is a keyword in some SQL dialects
func (Group) TableName() string {
	return "entry_groups"
}
