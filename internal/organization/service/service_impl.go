package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/events"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	"github.com/smallbiznis/pitchdeck/internal/observability/metrics"
	"github.com/smallbiznis/pitchdeck/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	GenID     *snowflake.Node
	Clock     clock.Clock
	AuditSvc  auditdomain.Service    `optional:"true"`
	Publisher events.Publisher       `optional:"true"`
	Metrics   *metrics.DomainMetrics `optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	auditSvc  auditdomain.Service
	publisher events.Publisher
	metrics   *metrics.DomainMetrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("organization.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		auditSvc:  p.AuditSvc,
		publisher: p.Publisher,
		metrics:   p.Metrics,
	}
}

// Create stores the organisation and the creator's membership atomically.
func (s *service) Create(ctx context.Context, caller identity.Identity, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	if caller.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if utf8.RuneCountInString(name) < domain.MinNameLength {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	org := domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		CreatedAt: now,
	}
	member := domain.Membership{
		ID:        s.genID.Generate(),
		OrgID:     org.ID,
		UserID:    caller.UserID,
		CreatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return repo.AddMember(ctx, member)
	})
	if err != nil {
		s.metrics.IncFailure("organization.create", err)
		return nil, err
	}

	s.metrics.IncMembership(metrics.MembershipSourceCreateOrg)
	s.audit(ctx, caller, org.ID, auditdomain.ActionOrganizationCreated, auditdomain.TargetTypeOrganization, org.ID, map[string]any{
		"name": org.Name,
	})
	events.Emit(ctx, s.publisher, events.TopicOrganizationCreated, map[string]string{
		"organization_id": org.ID.String(),
		"owner_user_id":   caller.UserID.String(),
		"created_at":      now.Format(time.RFC3339),
	})

	return &org, nil
}

func (s *service) AddManager(ctx context.Context, caller identity.Identity, orgID snowflake.ID, targetEmail string) (*domain.Membership, error) {
	member, err := s.addManager(ctx, caller, orgID, targetEmail)
	if err != nil {
		s.metrics.IncFailure("organization.add_manager", err)
		return nil, err
	}

	s.metrics.IncMembership(metrics.MembershipSourceAddManager)
	s.audit(ctx, caller, orgID, auditdomain.ActionManagerAdded, auditdomain.TargetTypeUser, member.UserID, nil)
	return member, nil
}

func (s *service) addManager(ctx context.Context, caller identity.Identity, orgID snowflake.ID, targetEmail string) (*domain.Membership, error) {
	if caller.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if strings.TrimSpace(targetEmail) == "" {
		return nil, domain.ErrInvalidEmail
	}
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	isMember, err := s.repo.IsMember(ctx, orgID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.ErrNotMember
	}

	target, err := s.repo.FindUserByEmail(ctx, targetEmail)
	if err != nil {
		return nil, err
	}
	targetUserID := target.ID
	if target.Role != identity.RoleManager {
		return nil, apperrors.ErrRoleMismatch
	}

	already, err := s.repo.IsMember(ctx, orgID, targetUserID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, apperrors.ErrAlreadyMember
	}

	member := domain.Membership{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    targetUserID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *service) AddMember(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) error {
	if userID == 0 || orgID == 0 {
		return domain.ErrInvalidUser
	}
	err := s.repo.AddMember(ctx, domain.Membership{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		s.metrics.IncFailure("organization.add_member", err)
		return err
	}
	s.metrics.IncMembership(metrics.MembershipSourceAddMember)
	return nil
}

func (s *service) IsMember(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) (bool, error) {
	if userID == 0 || orgID == 0 {
		return false, nil
	}
	return s.repo.IsMember(ctx, orgID, userID)
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.Organization, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Organization{}
	}
	return items, nil
}

func (s *service) GetByID(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	if orgID == 0 {
		return nil, apperrors.ErrOrgNotFound
	}
	return s.repo.GetByID(ctx, orgID)
}

func (s *service) audit(ctx context.Context, caller identity.Identity, orgID snowflake.ID, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      orgID,
		ActorID:    caller.UserID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("failed to audit organization change", zap.String("action", action), zap.Error(err))
	}
}
