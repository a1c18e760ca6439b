package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

type Service interface {
	// Invite resolves the invitee by email and records a PENDING invitation.
	Invite(ctx context.Context, caller identity.Identity, orgID snowflake.ID, targetEmail string, role identity.Role) (*Invitation, error)
	ListPending(ctx context.Context, userID snowflake.ID) ([]PendingInvitation, error)
	Respond(ctx context.Context, caller identity.Identity, inviteID snowflake.ID, decision Status) (*Invitation, error)
}

// InviteLocker serialises concurrent invites for the same organisation and invitee.
type InviteLocker interface {
	TryLockInvite(ctx context.Context, orgID, inviteeID snowflake.ID) (string, bool, error)
	ReleaseInvite(ctx context.Context, orgID, inviteeID snowflake.ID, token string) error
}

var (
	ErrDuplicatePendingInvite = apperrors.New(apperrors.KindConflict, "duplicate_pending_invite", "a pending invitation already exists for this user")
	ErrInviteNotFound         = apperrors.New(apperrors.KindNotFound, "invite_not_found", "invitation not found")
	ErrNotInvitee             = apperrors.New(apperrors.KindForbidden, "not_invitee", "invitation belongs to another user")
	ErrAlreadyResponded       = apperrors.New(apperrors.KindConflict, "already_responded", "invitation has already been answered")
	ErrInvalidDecision        = apperrors.New(apperrors.KindValidationFailed, "invalid_decision", "decision must be ACCEPT or REJECT")
)
