package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

type Service interface {
	Create(ctx context.Context, caller identity.Identity, req CreateRequest) (*Pitch, error)
	Update(ctx context.Context, caller identity.Identity, pitchID snowflake.ID, req UpdateRequest) (*Pitch, error)
	Delete(ctx context.Context, caller identity.Identity, pitchID snowflake.ID) error
	ListForTargetUser(ctx context.Context, userID snowflake.ID) ([]Pitch, error)
}

type TargetAuthor struct {
	MediaID      snowflake.ID
	TargetUserID snowflake.ID
	TargetOrgID  snowflake.ID
}

type CreateRequest struct {
	MediaID     snowflake.ID
	Description string
	Tags        []string
	Targets     []TargetAuthor
}

// UpdateRequest leaves nil fields untouched. A non-nil Tags replaces the whole set.
type UpdateRequest struct {
	Description *string
	Tags        *[]string
}

var (
	ErrPitchNotFound       = apperrors.New(apperrors.KindNotFound, "pitch_not_found", "pitch not found")
	ErrTargetMediaMismatch = apperrors.New(apperrors.KindValidationFailed, "target_media_mismatch", "every target author must reference the pitched media")
	ErrInvalidDescription  = apperrors.New(apperrors.KindValidationFailed, "invalid_description", "description is required")
	ErrInvalidTag          = apperrors.New(apperrors.KindValidationFailed, "invalid_tag", "tags must not be empty")
	ErrEmptyUpdate         = apperrors.New(apperrors.KindValidationFailed, "empty_update", "description or tags must be provided")
)
