package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectInvitation   = "invitation"
	ObjectPitch        = "pitch"
	ObjectMedia        = "media"
)

const (
	ActionOrganizationCreate = "organization.create"
	ActionManagerAdd         = "organization.manager_add"
	ActionInvitationCreate   = "invitation.create"
	ActionMediaUpload        = "media.upload"
	ActionPitchCreate        = "pitch.create"
	ActionPitchUpdate        = "pitch.update"
	ActionPitchDelete        = "pitch.delete"
)

const (
	roleManager    = "role:manager"
	roleSongwriter = "role:songwriter"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads persisted policies through the gorm adapter and seeds the defaults.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds a seeded enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, caller identity.Identity, object string, action string) error {
	if caller.UserID == 0 || caller.Role.IsZero() {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := caller.Subject()
	if err := s.ensureGrouping(subject, roleName(caller.Role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, caller, object, action)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping links subject to exactly one role.
func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil || has {
		return err
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, caller identity.Identity, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    caller.UserID,
		Action:     auditdomain.ActionAuthorizationDenied,
		TargetType: "authorization",
		Metadata: map[string]any{
			"object": object,
			"action": action,
			"role":   caller.Role.String(),
		},
	})
	if err != nil {
		s.log.Warn("failed to audit authorization denial",
			zap.String("user_id", caller.UserID.String()),
			zap.String("object", object),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func roleName(role identity.Role) string {
	if role == identity.RoleManager {
		return roleManager
	}
	return roleSongwriter
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleManager, ObjectOrganization, ActionOrganizationCreate},
		{roleManager, ObjectOrganization, ActionManagerAdd},
		{roleManager, ObjectInvitation, ActionInvitationCreate},
		{roleManager, ObjectMedia, ActionMediaUpload},
		{roleManager, ObjectPitch, ActionPitchCreate},
		{roleManager, ObjectPitch, ActionPitchUpdate},
		{roleManager, ObjectPitch, ActionPitchDelete},

		{roleSongwriter, ObjectMedia, ActionMediaUpload},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
