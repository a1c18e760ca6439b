package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

type Service interface {
	Create(ctx context.Context, caller identity.Identity, req CreateRequest) (*Media, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]Media, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Media, error)
}

type CreateRequest struct {
	OrgID       snowflake.ID
	Title       string
	Duration    string
	FilePath    string
	ContentType string
	SizeBytes   int64
}

var (
	ErrMediaNotFound = apperrors.New(apperrors.KindNotFound, "media_not_found", "media not found")
	ErrInvalidTitle  = apperrors.New(apperrors.KindValidationFailed, "invalid_title", "title is required")
	ErrInvalidFile   = apperrors.New(apperrors.KindValidationFailed, "invalid_file", "stored file path is required")
	ErrInvalidOrg    = apperrors.New(apperrors.KindValidationFailed, "invalid_org", "organisation id is required")
)
