package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string     `form:"action"`
	TargetType string     `form:"target_type"`
	TargetID   string     `form:"target_id"`
	ActorType  string     `form:"actor_type"`
	StartAt    *time.Time `form:"start_at" time_format:"2006-01-02T15:04:05Z07:00"`
	EndAt      *time.Time `form:"end_at" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Entry is one audited change. Zero ids are omitted: a zero OrgID marks a
// platform-level event and a zero ActorID falls back to the request's actor.
type Entry struct {
	OrgID      snowflake.ID
	ActorID    snowflake.ID
	Action     string
	TargetType string
	TargetID   snowflake.ID
	Metadata   map[string]any
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, orgID snowflake.ID, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidPageToken = apperrors.New(apperrors.KindValidationFailed, "invalid_page_token", "page token is malformed")
	ErrInvalidTimeRange = apperrors.New(apperrors.KindValidationFailed, "invalid_time_range", "start_at must not be after end_at")
	ErrInvalidAction    = apperrors.New(apperrors.KindValidationFailed, "invalid_action", "audit action is required")
)
