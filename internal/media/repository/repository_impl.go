package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	"github.com/smallbiznis/pitchdeck/internal/media/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, m domain.Media) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO media (id, title, duration, file_path, content_type, size_bytes, org_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Duration, m.FilePath, m.ContentType, m.SizeBytes, m.OrgID, m.CreatedAt,
	).Error
}

func (r *repository) AddAuthor(ctx context.Context, a domain.MediaAuthor) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO media_authors (id, media_id, user_id, org_id)
		 VALUES (?, ?, ?, ?)`,
		a.ID, a.MediaID, a.UserID, a.OrgID,
	).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Media, error) {
	var m domain.Media
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) ListByOrgIDs(ctx context.Context, orgIDs []snowflake.ID) ([]domain.Media, error) {
	var items []domain.Media
	err := r.db.WithContext(ctx).
		Where("org_id IN ?", orgIDs).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.Media, error) {
	if len(ids) == 0 {
		return []domain.Media{}, nil
	}
	var items []domain.Media
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type authorRow struct {
	ID              snowflake.ID
	MediaID         snowflake.ID
	UserID          snowflake.ID
	OrgID           snowflake.ID
	UserEmail       string
	UserDisplayName string
	UserRole        identity.Role
	OrgName         string
	OrgSlug         string
}

func (r *repository) ListAuthors(ctx context.Context, mediaIDs []snowflake.ID) ([]domain.MediaAuthor, error) {
	if len(mediaIDs) == 0 {
		return []domain.MediaAuthor{}, nil
	}

	var rows []authorRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT a.id, a.media_id, a.user_id, a.org_id,
		        u.email AS user_email, u.display_name AS user_display_name, u.role AS user_role,
		        o.name AS org_name, o.slug AS org_slug
		 FROM media_authors a
		 JOIN users u ON u.id = a.user_id
		 JOIN organizations o ON o.id = a.org_id
		 WHERE a.media_id IN ?
		 ORDER BY a.id ASC`,
		mediaIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	authors := make([]domain.MediaAuthor, 0, len(rows))
	for _, row := range rows {
		authors = append(authors, domain.MediaAuthor{
			ID:      row.ID,
			MediaID: row.MediaID,
			UserID:  row.UserID,
			OrgID:   row.OrgID,
			User: &domain.AuthorUser{
				ID:          row.UserID,
				Email:       row.UserEmail,
				DisplayName: row.UserDisplayName,
				Role:        row.UserRole,
			},
			Organization: &domain.AuthorOrganization{ID: row.OrgID, Name: row.OrgName, Slug: row.OrgSlug},
		})
	}
	return authors, nil
}
