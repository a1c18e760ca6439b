package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusAccept  Status = "ACCEPT"
	StatusReject  Status = "REJECT"
)

// ParseDecision accepts only the two terminal states.
func ParseDecision(raw string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusAccept:
		return StatusAccept, nil
	case StatusReject:
		return StatusReject, nil
	default:
		return "", ErrInvalidDecision
	}
}

// Invitation moves from PENDING to ACCEPT or REJECT exactly once.
type Invitation struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index:ix_invitations_org_invitee,priority:1" json:"org_id"`
	InviterID   snowflake.ID  `gorm:"not null" json:"inviter_id"`
	InviteeID   snowflake.ID  `gorm:"not null;index:ix_invitations_org_invitee,priority:2;index:ix_invitations_invitee_status,priority:1" json:"invitee_id"`
	Role        identity.Role `gorm:"type:text;not null" json:"role"`
	Status      Status        `gorm:"type:text;not null;index:ix_invitations_invitee_status,priority:2" json:"status"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
}

func (Invitation) TableName() string { return "invitations" }

type OrganizationSummary struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
	Slug string       `json:"slug"`
}

type InviterSummary struct {
	ID          snowflake.ID `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
}

// PendingInvitation is an invitation with the context an invitee needs to decide.
type PendingInvitation struct {
	Invitation
	Organization OrganizationSummary `json:"organization"`
	Inviter      InviterSummary      `json:"inviter"`
}
