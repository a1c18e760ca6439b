// Package domain holds pitches: proposals attached to media and aimed at other collaborators.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	mediadomain "github.com/smallbiznis/pitchdeck/internal/media/domain"
)

// Pitch is authored on behalf of the organisation owning its media.
type Pitch struct {
	ID           snowflake.ID        `gorm:"primaryKey" json:"id"`
	MediaID      snowflake.ID        `gorm:"not null;index" json:"media_id"`
	AuthorUserID snowflake.ID        `gorm:"not null" json:"author_user_id"`
	AuthorOrgID  snowflake.ID        `gorm:"not null;index" json:"author_org_id"`
	Description  string              `gorm:"type:text;not null" json:"description"`
	CreatedAt    time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"not null" json:"updated_at"`
	Tags         []PitchTag          `gorm:"-" json:"tags"`
	Targets      []PitchTargetAuthor `gorm:"-" json:"target_authors"`
	Media        *mediadomain.Media  `gorm:"-" json:"media,omitempty"`
}

func (Pitch) TableName() string { return "pitches" }

// PitchTag values are kept as given, duplicates included.
type PitchTag struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	PitchID snowflake.ID `gorm:"not null;index" json:"pitch_id"`
	Value   string       `gorm:"type:text;not null" json:"value"`
}

func (PitchTag) TableName() string { return "pitch_tags" }

// PitchTargetAuthor names a collaborator the pitch is aimed at. MediaID always equals the pitch's.
type PitchTargetAuthor struct {
	ID           snowflake.ID         `gorm:"primaryKey" json:"id"`
	PitchID      snowflake.ID         `gorm:"not null;index" json:"pitch_id"`
	MediaID      snowflake.ID         `gorm:"not null" json:"media_id"`
	TargetUserID snowflake.ID         `gorm:"not null;index" json:"target_user_id"`
	TargetOrgID  snowflake.ID         `gorm:"not null" json:"target_org_id"`
	User         *UserSummary         `gorm:"-" json:"user,omitempty"`
	Organization *OrganizationSummary `gorm:"-" json:"organization,omitempty"`
}

func (PitchTargetAuthor) TableName() string { return "pitch_target_authors" }

type UserSummary struct {
	ID          snowflake.ID `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
}

type OrganizationSummary struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
}
