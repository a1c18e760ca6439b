package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, pitch Pitch) error
	AddTags(ctx context.Context, tags []PitchTag) error
	AddTargets(ctx context.Context, targets []PitchTargetAuthor) error
	GetByID(ctx context.Context, id snowflake.ID) (*Pitch, error)
	Update(ctx context.Context, id snowflake.ID, description *string, updatedAt time.Time) error
	DeleteTags(ctx context.Context, pitchID snowflake.ID) error
	DeleteTargets(ctx context.Context, pitchID snowflake.ID) error
	Delete(ctx context.Context, id snowflake.ID) error
	ListTargetedAt(ctx context.Context, userID snowflake.ID) ([]Pitch, error)
	ListTags(ctx context.Context, pitchIDs []snowflake.ID) ([]PitchTag, error)
	// ListTargets attaches the target user and organisation when they still exist.
	ListTargets(ctx context.Context, pitchIDs []snowflake.ID) ([]PitchTargetAuthor, error)
}
