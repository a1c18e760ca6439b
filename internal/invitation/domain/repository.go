package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// InsertPending reports false when a PENDING invitation already exists for the pair.
	InsertPending(ctx context.Context, inv Invitation) (bool, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	// MarkResponded reports false when the invitation is no longer PENDING.
	MarkResponded(ctx context.Context, id snowflake.ID, status Status, at time.Time) (bool, error)
	ListPendingForInvitee(ctx context.Context, inviteeID snowflake.ID) ([]PendingInvitation, error)
}
