package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/audit/domain"
	"github.com/smallbiznis/pitchdeck/internal/audit/masking"
	"github.com/smallbiznis/pitchdeck/internal/auditcontext"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, in domain.Entry) error {
	action := strings.TrimSpace(in.Action)
	if action == "" {
		return domain.ErrInvalidAction
	}

	metadata := masking.MaskMetadata(in.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}

	actorType, actorID := resolveActor(ctx, in.ActorID)
	entry := domain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      optionalID(in.OrgID),
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: defaultTarget(in.TargetType),
		TargetID:   optionalString(in.TargetID),
		Metadata:   datatypes.JSONMap(metadata),
		IPAddress:  nonEmpty(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  nonEmpty(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req domain.ListAuditLogRequest) (domain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return domain.ListAuditLogResponse{}, domain.ErrInvalidTimeRange
	}

	cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OrgID:      orgID,
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	logs := make([]domain.AuditLog, 0, len(items))
	for _, item := range items {
		if item != nil {
			logs = append(logs, *item)
		}
	}
	return domain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func decodeCursor(token string) (*domain.AuditCursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.AuditCursor{ID: id, CreatedAt: createdAt}, nil
}

// resolveActor prefers the explicit user, then the actor stamped on the
// request, and records the system otherwise.
func resolveActor(ctx context.Context, userID snowflake.ID) (string, *string) {
	if userID != 0 {
		return string(domain.ActorTypeUser), optionalString(userID)
	}
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType != "" {
		return actorType, nonEmpty(actorID)
	}
	return string(domain.ActorTypeSystem), nil
}

func defaultTarget(targetType string) string {
	if t := strings.TrimSpace(targetType); t != "" {
		return t
	}
	return "unknown"
}

func optionalID(id snowflake.ID) *snowflake.ID {
	if id == 0 {
		return nil
	}
	return &id
}

func optionalString(id snowflake.ID) *string {
	if id == 0 {
		return nil
	}
	return nonEmpty(id.String())
}

func nonEmpty(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}
