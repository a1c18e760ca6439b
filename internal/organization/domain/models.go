// Package domain contains persistence models for the organisation service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

// Organization is the tenant boundary owning media and pitches.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;index:ix_organizations_slug" json:"slug"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Organization) TableName() string { return "organizations" }

// Membership grants a user participation in an organisation. Rows are never removed.
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;uniqueIndex:ux_memberships_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_memberships_org_user,priority:2" json:"user_id"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Membership) TableName() string { return "memberships" }

// UserRef is the slice of a user account this domain reads.
type UserRef struct {
	ID          snowflake.ID  `json:"id"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name"`
	Role        identity.Role `json:"role"`
}
