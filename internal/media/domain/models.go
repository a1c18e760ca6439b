// Package domain holds media assets and their authors.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

// Media belongs to exactly one organisation for its whole life.
type Media struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"type:text;not null" json:"title"`
	Duration    string        `gorm:"type:text;not null" json:"duration"`
	FilePath    string        `gorm:"type:text;not null" json:"file_path"`
	ContentType string        `gorm:"type:text;not null" json:"content_type"`
	SizeBytes   int64         `gorm:"not null" json:"size_bytes"`
	OrgID       snowflake.ID  `gorm:"not null;index:ix_media_org_created,priority:1" json:"org_id"`
	CreatedAt   time.Time     `gorm:"not null;index:ix_media_org_created,priority:2" json:"created_at"`
	Authors     []MediaAuthor `gorm:"-" json:"authors"`
}

func (Media) TableName() string { return "media" }

type MediaAuthor struct {
	ID           snowflake.ID        `gorm:"primaryKey" json:"id"`
	MediaID      snowflake.ID        `gorm:"not null;index" json:"media_id"`
	UserID       snowflake.ID        `gorm:"not null;index" json:"user_id"`
	OrgID        snowflake.ID        `gorm:"not null" json:"org_id"`
	User         *AuthorUser         `gorm:"-" json:"user,omitempty"`
	Organization *AuthorOrganization `gorm:"-" json:"organization,omitempty"`
}

func (MediaAuthor) TableName() string { return "media_authors" }

type AuthorUser struct {
	ID          snowflake.ID  `json:"id"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name"`
	Role        identity.Role `json:"role"`
}

type AuthorOrganization struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
	Slug string       `json:"slug"`
}
