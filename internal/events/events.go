// Package events records domain events in a transactional outbox table.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TopicOrganizationCreated = "organization.created"
	TopicInvitationCreated   = "invitation.created"
	TopicInvitationResponded = "invitation.responded"
	TopicPitchCreated        = "pitch.created"
)

var ErrEmptyTopic = errors.New("empty_topic")

// OutboxEvent is a pending event waiting for a relay.
type OutboxEvent struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Topic     string         `gorm:"type:text;not null;index" json:"topic"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Published bool           `gorm:"not null;default:false;index" json:"published"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node) Publisher {
	return &outboxPublisher{db: db, genID: genID}
}

func (p *outboxPublisher) Publish(ctx context.Context, topic string, payload any) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyTopic
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.db.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, topic, payload, published, created_at)
		 VALUES (?, ?, ?, false, ?)`,
		p.genID.Generate(),
		topic,
		datatypes.JSON(data),
		time.Now().UTC(),
	).Error
}

// Emit publishes and only logs failures. A nil publisher is a no-op.
func Emit(ctx context.Context, publisher Publisher, topic string, payload any) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, topic, payload); err != nil {
		zap.L().Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
