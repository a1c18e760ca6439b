package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/events"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	mediadomain "github.com/smallbiznis/pitchdeck/internal/media/domain"
	"github.com/smallbiznis/pitchdeck/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	"github.com/smallbiznis/pitchdeck/internal/pitch/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Repo          domain.Repository
	MediaRepo     mediadomain.Repository
	OrgRepo       orgdomain.Repository
	GenID         *snowflake.Node
	Clock         clock.Clock
	AuditSvc      auditdomain.Service    `optional:"true"`
	Publisher     events.Publisher       `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	DomainMetrics *metrics.DomainMetrics `optional:"true"`
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	repo          domain.Repository
	mediaRepo     mediadomain.Repository
	orgRepo       orgdomain.Repository
	genID         *snowflake.Node
	clock         clock.Clock
	auditSvc      auditdomain.Service
	publisher     events.Publisher
	metrics       *metrics.Metrics
	domainMetrics *metrics.DomainMetrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("pitch.service"),
		repo:          p.Repo,
		mediaRepo:     p.MediaRepo,
		orgRepo:       p.OrgRepo,
		genID:         p.GenID,
		clock:         p.Clock,
		auditSvc:      p.AuditSvc,
		publisher:     p.Publisher,
		metrics:       p.Metrics,
		domainMetrics: p.DomainMetrics,
	}
}

// Create writes the pitch with its tags and targets, or nothing at all.
func (s *service) Create(ctx context.Context, caller identity.Identity, req domain.CreateRequest) (*domain.Pitch, error) {
	pitch, err := s.create(ctx, caller, req)
	if err != nil {
		s.domainMetrics.IncFailure("pitch.create", err)
		return nil, err
	}

	s.metrics.RecordPitchCreated(ctx)
	events.Emit(ctx, s.publisher, events.TopicPitchCreated, map[string]any{
		"pitch_id":       pitch.ID.String(),
		"media_id":       pitch.MediaID.String(),
		"author_user_id": pitch.AuthorUserID.String(),
		"author_org_id":  pitch.AuthorOrgID.String(),
		"target_count":   len(pitch.Targets),
	})
	return pitch, nil
}

func (s *service) create(ctx context.Context, caller identity.Identity, req domain.CreateRequest) (*domain.Pitch, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrInvalidDescription
	}
	if err := validateTags(req.Tags); err != nil {
		return nil, err
	}

	media, err := s.mediaRepo.GetByID(ctx, req.MediaID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, caller, media.OrgID); err != nil {
		return nil, err
	}
	for _, target := range req.Targets {
		if target.MediaID != media.ID {
			return nil, domain.ErrTargetMediaMismatch
		}
	}

	now := s.clock.Now()
	pitch := domain.Pitch{
		ID:           s.genID.Generate(),
		MediaID:      media.ID,
		AuthorUserID: caller.UserID,
		AuthorOrgID:  media.OrgID,
		Description:  description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	pitch.Tags = s.buildTags(pitch.ID, req.Tags)
	pitch.Targets = make([]domain.PitchTargetAuthor, 0, len(req.Targets))
	for _, target := range req.Targets {
		pitch.Targets = append(pitch.Targets, domain.PitchTargetAuthor{
			ID:           s.genID.Generate(),
			PitchID:      pitch.ID,
			MediaID:      target.MediaID,
			TargetUserID: target.TargetUserID,
			TargetOrgID:  target.TargetOrgID,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, pitch); err != nil {
			return err
		}
		if err := repo.AddTags(ctx, pitch.Tags); err != nil {
			return err
		}
		return repo.AddTargets(ctx, pitch.Targets)
	})
	if err != nil {
		return nil, err
	}

	pitch.Media = media
	return &pitch, nil
}

func (s *service) Update(ctx context.Context, caller identity.Identity, pitchID snowflake.ID, req domain.UpdateRequest) (*domain.Pitch, error) {
	pitch, err := s.update(ctx, caller, pitchID, req)
	if err != nil {
		s.domainMetrics.IncFailure("pitch.update", err)
		return nil, err
	}
	return pitch, nil
}

func (s *service) update(ctx context.Context, caller identity.Identity, pitchID snowflake.ID, req domain.UpdateRequest) (*domain.Pitch, error) {
	if req.Description == nil && req.Tags == nil {
		return nil, domain.ErrEmptyUpdate
	}
	var description *string
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			return nil, domain.ErrInvalidDescription
		}
		description = &trimmed
	}
	if req.Tags != nil {
		if err := validateTags(*req.Tags); err != nil {
			return nil, err
		}
	}

	pitch, media, err := s.loadOwned(ctx, caller, pitchID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var tags []domain.PitchTag
	if req.Tags != nil {
		tags = s.buildTags(pitch.ID, *req.Tags)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, pitch.ID, description, now); err != nil {
			return err
		}
		if req.Tags == nil {
			return nil
		}
		if err := repo.DeleteTags(ctx, pitch.ID); err != nil {
			return err
		}
		return repo.AddTags(ctx, tags)
	})
	if err != nil {
		return nil, err
	}

	if description != nil {
		pitch.Description = *description
	}
	pitch.UpdatedAt = now
	if req.Tags == nil {
		tags, err = s.repo.ListTags(ctx, []snowflake.ID{pitch.ID})
		if err != nil {
			return nil, err
		}
	}
	targets, err := s.repo.ListTargets(ctx, []snowflake.ID{pitch.ID})
	if err != nil {
		return nil, err
	}
	pitch.Tags = tags
	pitch.Targets = targets
	pitch.Media = media
	return pitch, nil
}

// Delete removes tags, then targets, then the pitch itself in one transaction.
func (s *service) Delete(ctx context.Context, caller identity.Identity, pitchID snowflake.ID) error {
	pitch, _, err := s.loadOwned(ctx, caller, pitchID)
	if err != nil {
		s.domainMetrics.IncFailure("pitch.delete", err)
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteTags(ctx, pitch.ID); err != nil {
			return err
		}
		if err := repo.DeleteTargets(ctx, pitch.ID); err != nil {
			return err
		}
		return repo.Delete(ctx, pitch.ID)
	})
	if err != nil {
		s.domainMetrics.IncFailure("pitch.delete", err)
		return err
	}

	if s.auditSvc != nil {
		err := s.auditSvc.Record(ctx, auditdomain.Entry{
			OrgID:      pitch.AuthorOrgID,
			ActorID:    caller.UserID,
			Action:     auditdomain.ActionPitchDeleted,
			TargetType: auditdomain.TargetTypePitch,
			TargetID:   pitch.ID,
			Metadata:   map[string]any{"media_id": pitch.MediaID.String()},
		})
		if err != nil {
			s.log.Warn("failed to audit pitch deletion", zap.Error(err))
		}
	}
	return nil
}

func (s *service) ListForTargetUser(ctx context.Context, userID snowflake.ID) ([]domain.Pitch, error) {
	pitches, err := s.repo.ListTargetedAt(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(pitches) == 0 {
		return []domain.Pitch{}, nil
	}

	pitchIDs := make([]snowflake.ID, 0, len(pitches))
	mediaIDs := make([]snowflake.ID, 0, len(pitches))
	seenMedia := make(map[snowflake.ID]struct{}, len(pitches))
	for _, p := range pitches {
		pitchIDs = append(pitchIDs, p.ID)
		if _, ok := seenMedia[p.MediaID]; !ok {
			seenMedia[p.MediaID] = struct{}{}
			mediaIDs = append(mediaIDs, p.MediaID)
		}
	}

	tags, err := s.repo.ListTags(ctx, pitchIDs)
	if err != nil {
		return nil, err
	}
	targets, err := s.repo.ListTargets(ctx, pitchIDs)
	if err != nil {
		return nil, err
	}
	media, err := s.mediaRepo.ListByIDs(ctx, mediaIDs)
	if err != nil {
		return nil, err
	}

	tagsByPitch := make(map[snowflake.ID][]domain.PitchTag, len(pitches))
	for _, tag := range tags {
		tagsByPitch[tag.PitchID] = append(tagsByPitch[tag.PitchID], tag)
	}
	targetsByPitch := make(map[snowflake.ID][]domain.PitchTargetAuthor, len(pitches))
	for _, target := range targets {
		targetsByPitch[target.PitchID] = append(targetsByPitch[target.PitchID], target)
	}
	mediaByID := make(map[snowflake.ID]*mediadomain.Media, len(media))
	for i := range media {
		mediaByID[media[i].ID] = &media[i]
	}

	for i := range pitches {
		p := &pitches[i]
		p.Tags = tagsByPitch[p.ID]
		if p.Tags == nil {
			p.Tags = []domain.PitchTag{}
		}
		p.Targets = targetsByPitch[p.ID]
		p.Media = mediaByID[p.MediaID]
	}
	return pitches, nil
}

// loadOwned resolves the pitch and checks the caller belongs to the organisation owning its media.
func (s *service) loadOwned(ctx context.Context, caller identity.Identity, pitchID snowflake.ID) (*domain.Pitch, *mediadomain.Media, error) {
	pitch, err := s.repo.GetByID(ctx, pitchID)
	if err != nil {
		return nil, nil, err
	}
	media, err := s.mediaRepo.GetByID(ctx, pitch.MediaID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireMember(ctx, caller, media.OrgID); err != nil {
		return nil, nil, err
	}
	return pitch, media, nil
}

func (s *service) requireMember(ctx context.Context, caller identity.Identity, orgID snowflake.ID) error {
	ok, err := s.orgRepo.IsMember(ctx, orgID, caller.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotMember
	}
	return nil
}

func (s *service) buildTags(pitchID snowflake.ID, values []string) []domain.PitchTag {
	tags := make([]domain.PitchTag, 0, len(values))
	for _, value := range values {
		tags = append(tags, domain.PitchTag{
			ID:      s.genID.Generate(),
			PitchID: pitchID,
			Value:   strings.TrimSpace(value),
		})
	}
	return tags
}

func validateTags(values []string) error {
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			return domain.ErrInvalidTag
		}
	}
	return nil
}
