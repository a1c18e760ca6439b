package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, media Media) error
	AddAuthor(ctx context.Context, author MediaAuthor) error
	GetByID(ctx context.Context, id snowflake.ID) (*Media, error)
	ListByOrgIDs(ctx context.Context, orgIDs []snowflake.ID) ([]Media, error)
	ListByIDs(ctx context.Context, ids []snowflake.ID) ([]Media, error)
	// ListAuthors returns authors of the given media with user and organisation attached.
	ListAuthors(ctx context.Context, mediaIDs []snowflake.ID) ([]MediaAuthor, error)
}
