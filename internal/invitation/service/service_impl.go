package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/events"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	"github.com/smallbiznis/pitchdeck/internal/invitation/domain"
	"github.com/smallbiznis/pitchdeck/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Repo          domain.Repository
	OrgRepo       orgdomain.Repository
	GenID         *snowflake.Node
	Clock         clock.Clock
	Locker        domain.InviteLocker    `optional:"true"`
	AuditSvc      auditdomain.Service    `optional:"true"`
	Publisher     events.Publisher       `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	DomainMetrics *metrics.DomainMetrics `optional:"true"`
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	repo          domain.Repository
	orgRepo       orgdomain.Repository
	genID         *snowflake.Node
	clock         clock.Clock
	locker        domain.InviteLocker
	auditSvc      auditdomain.Service
	publisher     events.Publisher
	metrics       *metrics.Metrics
	domainMetrics *metrics.DomainMetrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("invitation.service"),
		repo:          p.Repo,
		orgRepo:       p.OrgRepo,
		genID:         p.GenID,
		clock:         p.Clock,
		locker:        p.Locker,
		auditSvc:      p.AuditSvc,
		publisher:     p.Publisher,
		metrics:       p.Metrics,
		domainMetrics: p.DomainMetrics,
	}
}

func (s *service) Invite(ctx context.Context, caller identity.Identity, orgID snowflake.ID, targetEmail string, role identity.Role) (*domain.Invitation, error) {
	inv, err := s.invite(ctx, caller, orgID, targetEmail, role)
	if err != nil {
		s.domainMetrics.IncFailure("invitation.invite", err)
		return nil, err
	}

	s.domainMetrics.IncInvitationTransition(string(domain.StatusPending))
	s.metrics.RecordInvitationCreated(ctx, role.String())
	s.audit(ctx, caller, orgID, auditdomain.ActionInvitationCreated, inv.ID, map[string]any{
		"invitee_id": inv.InviteeID.String(),
		"role":       role.String(),
	})
	events.Emit(ctx, s.publisher, events.TopicInvitationCreated, map[string]string{
		"invitation_id": inv.ID.String(),
		"org_id":        orgID.String(),
		"inviter_id":    caller.UserID.String(),
		"invitee_id":    inv.InviteeID.String(),
		"role":          role.String(),
	})
	return inv, nil
}

func (s *service) invite(ctx context.Context, caller identity.Identity, orgID snowflake.ID, targetEmail string, role identity.Role) (*domain.Invitation, error) {
	if role.IsZero() {
		return nil, identity.ErrInvalidRole
	}
	if _, err := s.orgRepo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	isMember, err := s.orgRepo.IsMember(ctx, orgID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.ErrNotMember
	}

	target, err := s.orgRepo.FindUserByEmail(ctx, targetEmail)
	if err != nil {
		return nil, err
	}
	targetUserID := target.ID
	if target.Role != role {
		return nil, apperrors.ErrRoleMismatch
	}
	already, err := s.orgRepo.IsMember(ctx, orgID, targetUserID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, apperrors.ErrAlreadyMember
	}

	if s.locker != nil {
		token, acquired, err := s.locker.TryLockInvite(ctx, orgID, targetUserID)
		switch {
		case err != nil:
			s.log.Warn("invite lock unavailable", zap.Error(err))
		case !acquired:
			return nil, domain.ErrDuplicatePendingInvite
		default:
			defer func() {
				if err := s.locker.ReleaseInvite(context.WithoutCancel(ctx), orgID, targetUserID, token); err != nil {
					s.log.Warn("failed to release invite lock", zap.Error(err))
				}
			}()
		}
	}

	inv := domain.Invitation{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		InviterID: caller.UserID,
		InviteeID: targetUserID,
		Role:      role,
		Status:    domain.StatusPending,
		CreatedAt: s.clock.Now(),
	}
	inserted, err := s.repo.InsertPending(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, domain.ErrDuplicatePendingInvite
	}
	return &inv, nil
}

func (s *service) ListPending(ctx context.Context, userID snowflake.ID) ([]domain.PendingInvitation, error) {
	items, err := s.repo.ListPendingForInvitee(ctx, userID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Respond settles a PENDING invitation. Accepting adds the membership in the same transaction.
func (s *service) Respond(ctx context.Context, caller identity.Identity, inviteID snowflake.ID, decision domain.Status) (*domain.Invitation, error) {
	inv, joined, err := s.respond(ctx, caller, inviteID, decision)
	if err != nil {
		s.domainMetrics.IncFailure("invitation.respond", err)
		return nil, err
	}

	s.domainMetrics.IncInvitationTransition(string(decision))
	s.metrics.RecordInvitationResponded(ctx, string(decision))
	if joined {
		s.domainMetrics.IncMembership(metrics.MembershipSourceInviteAccept)
	}

	action := auditdomain.ActionInvitationRejected
	if decision == domain.StatusAccept {
		action = auditdomain.ActionInvitationAccepted
	}
	s.audit(ctx, caller, inv.OrgID, action, inv.ID, map[string]any{
		"joined": joined,
	})
	events.Emit(ctx, s.publisher, events.TopicInvitationResponded, map[string]string{
		"invitation_id": inv.ID.String(),
		"org_id":        inv.OrgID.String(),
		"invitee_id":    inv.InviteeID.String(),
		"status":        string(decision),
	})
	return inv, nil
}

func (s *service) respond(ctx context.Context, caller identity.Identity, inviteID snowflake.ID, decision domain.Status) (*domain.Invitation, bool, error) {
	if decision != domain.StatusAccept && decision != domain.StatusReject {
		return nil, false, domain.ErrInvalidDecision
	}

	inv, err := s.repo.GetByID(ctx, inviteID)
	if err != nil {
		return nil, false, err
	}
	if inv.InviteeID != caller.UserID {
		return nil, false, domain.ErrNotInvitee
	}
	if inv.Status != domain.StatusPending {
		return nil, false, domain.ErrAlreadyResponded
	}

	now := s.clock.Now()
	joined := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.repo.WithTx(tx).MarkResponded(ctx, inv.ID, decision, now)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrAlreadyResponded
		}
		if decision != domain.StatusAccept {
			return nil
		}

		orgRepo := s.orgRepo.WithTx(tx)
		isMember, err := orgRepo.IsMember(ctx, inv.OrgID, inv.InviteeID)
		if err != nil {
			return err
		}
		if isMember {
			return nil
		}
		if err := orgRepo.AddMember(ctx, orgdomain.Membership{
			ID:        s.genID.Generate(),
			OrgID:     inv.OrgID,
			UserID:    inv.InviteeID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		joined = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	inv.Status = decision
	inv.RespondedAt = &now
	return inv, joined, nil
}

func (s *service) audit(ctx context.Context, caller identity.Identity, orgID snowflake.ID, action string, inviteID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      orgID,
		ActorID:    caller.UserID,
		Action:     action,
		TargetType: auditdomain.TargetTypeInvitation,
		TargetID:   inviteID,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("failed to audit invitation change", zap.String("action", action), zap.Error(err))
	}
}

