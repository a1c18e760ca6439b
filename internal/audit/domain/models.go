package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

const (
	ActionOrganizationCreated = "organization.created"
	ActionManagerAdded        = "membership.manager_added"
	ActionMemberAdded         = "membership.member_added"
	ActionInvitationCreated   = "invitation.created"
	ActionInvitationAccepted  = "invitation.accepted"
	ActionInvitationRejected  = "invitation.rejected"
	ActionPitchDeleted        = "pitch.deleted"
	ActionAuthorizationDenied = "authorization.denied"
)

const (
	TargetTypeOrganization = "organization"
	TargetTypeUser         = "user"
	TargetTypeInvitation   = "invitation"
	TargetTypePitch        = "pitch"
)

// AuditLog is one immutable entry of an organisation's trail.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      *snowflake.ID     `gorm:"index:ix_audit_logs_org_created,priority:1" json:"org_id,omitempty"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index:ix_audit_logs_org_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// AuditCursor is the keyset position of the last row of a page.
type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
