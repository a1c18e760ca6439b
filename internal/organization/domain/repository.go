package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	AddMember(ctx context.Context, member Membership) error
	IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error)
	GetByID(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Organization, error)
	// FindUserByEmail matches case-insensitively and returns ErrTargetNotFound when nobody does.
	FindUserByEmail(ctx context.Context, email string) (*UserRef, error)
}
