package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	"github.com/smallbiznis/pitchdeck/internal/media/domain"
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
	metrics       *metrics.Metrics
	domainMetrics *metrics.DomainMetrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("media.service"),
		repo:          p.Repo,
		orgRepo:       p.OrgRepo,
		genID:         p.GenID,
		clock:         p.Clock,
		metrics:       p.Metrics,
		domainMetrics: p.DomainMetrics,
	}
}

// Create records an already stored file as media of req.OrgID with the caller as its author.
func (s *service) Create(ctx context.Context, caller identity.Identity, req domain.CreateRequest) (*domain.Media, error) {
	media, err := s.create(ctx, caller, req)
	if err != nil {
		s.domainMetrics.IncFailure("media.create", err)
		return nil, err
	}

	s.metrics.RecordMediaUploaded(ctx, media.ContentType)
	s.domainMetrics.ObserveUploadBytes(media.SizeBytes)
	s.log.Info("media created",
		zap.String("media_id", media.ID.String()),
		zap.String("org_id", media.OrgID.String()),
		zap.String("content_type", media.ContentType),
	)
	return media, nil
}

func (s *service) create(ctx context.Context, caller identity.Identity, req domain.CreateRequest) (*domain.Media, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrg
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	if strings.TrimSpace(req.FilePath) == "" {
		return nil, domain.ErrInvalidFile
	}

	isMember, err := s.orgRepo.IsMember(ctx, req.OrgID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.ErrNotMember
	}

	media := domain.Media{
		ID:          s.genID.Generate(),
		Title:       title,
		Duration:    strings.TrimSpace(req.Duration),
		FilePath:    req.FilePath,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		OrgID:       req.OrgID,
		CreatedAt:   s.clock.Now(),
	}
	author := domain.MediaAuthor{
		ID:      s.genID.Generate(),
		MediaID: media.ID,
		UserID:  caller.UserID,
		OrgID:   req.OrgID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, media); err != nil {
			return err
		}
		return repo.AddAuthor(ctx, author)
	})
	if err != nil {
		return nil, err
	}

	media.Authors = []domain.MediaAuthor{author}
	return &media, nil
}

func (s *service) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.Media, error) {
	orgs, err := s.orgRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return []domain.Media{}, nil
	}

	orgIDs := make([]snowflake.ID, 0, len(orgs))
	for _, org := range orgs {
		orgIDs = append(orgIDs, org.ID)
	}

	items, err := s.repo.ListByOrgIDs(ctx, orgIDs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.Media{}, nil
	}

	mediaIDs := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		mediaIDs = append(mediaIDs, item.ID)
	}
	authors, err := s.repo.ListAuthors(ctx, mediaIDs)
	if err != nil {
		return nil, err
	}

	byMedia := make(map[snowflake.ID][]domain.MediaAuthor, len(items))
	for _, a := range authors {
		byMedia[a.MediaID] = append(byMedia[a.MediaID], a)
	}
	for i := range items {
		items[i].Authors = byMedia[items[i].ID]
		if items[i].Authors == nil {
			items[i].Authors = []domain.MediaAuthor{}
		}
	}
	return items, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Media, error) {
	if id == 0 {
		return nil, domain.ErrMediaNotFound
	}
	return s.repo.GetByID(ctx, id)
}
