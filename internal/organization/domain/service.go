package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

type Service interface {
	Create(ctx context.Context, caller identity.Identity, req CreateOrganizationRequest) (*Organization, error)
	// AddManager grants membership to the MANAGER account registered under targetEmail.
	AddManager(ctx context.Context, caller identity.Identity, orgID snowflake.ID, targetEmail string) (*Membership, error)
	AddMember(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) error
	IsMember(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) (bool, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Organization, error)
	GetByID(ctx context.Context, orgID snowflake.ID) (*Organization, error)
}

type CreateOrganizationRequest struct {
	Name string
}

// MinNameLength is the shortest accepted organisation name.
const MinNameLength = 3

var (
	ErrInvalidName  = apperrors.New(apperrors.KindValidationFailed, "invalid_name", "organisation name must be at least 3 characters")
	ErrInvalidUser  = apperrors.New(apperrors.KindValidationFailed, "invalid_user", "user id is required")
	ErrInvalidEmail = apperrors.New(apperrors.KindValidationFailed, "invalid_email", "target email is required")
)
