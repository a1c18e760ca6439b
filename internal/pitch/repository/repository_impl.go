package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/pitch/domain"
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

func (r *repository) Create(ctx context.Context, p domain.Pitch) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO pitches (id, media_id, author_user_id, author_org_id, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MediaID, p.AuthorUserID, p.AuthorOrgID, p.Description, p.CreatedAt, p.UpdatedAt,
	).Error
}

func (r *repository) AddTags(ctx context.Context, tags []domain.PitchTag) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&tags).Error
}

func (r *repository) AddTargets(ctx context.Context, targets []domain.PitchTargetAuthor) error {
	if len(targets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&targets).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Pitch, error) {
	var p domain.Pitch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPitchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) Update(ctx context.Context, id snowflake.ID, description *string, updatedAt time.Time) error {
	updates := map[string]any{"updated_at": updatedAt}
	if description != nil {
		updates["description"] = *description
	}
	res := r.db.WithContext(ctx).Model(&domain.Pitch{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPitchNotFound
	}
	return nil
}

func (r *repository) DeleteTags(ctx context.Context, pitchID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(`DELETE FROM pitch_tags WHERE pitch_id = ?`, pitchID).Error
}

func (r *repository) DeleteTargets(ctx context.Context, pitchID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(`DELETE FROM pitch_target_authors WHERE pitch_id = ?`, pitchID).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM pitches WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPitchNotFound
	}
	return nil
}

func (r *repository) ListTargetedAt(ctx context.Context, userID snowflake.ID) ([]domain.Pitch, error) {
	var items []domain.Pitch
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&domain.PitchTargetAuthor{}).Select("pitch_id").Where("target_user_id = ?", userID)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListTags(ctx context.Context, pitchIDs []snowflake.ID) ([]domain.PitchTag, error) {
	if len(pitchIDs) == 0 {
		return []domain.PitchTag{}, nil
	}
	var tags []domain.PitchTag
	err := r.db.WithContext(ctx).Where("pitch_id IN ?", pitchIDs).Order("id ASC").Find(&tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}

type targetRow struct {
	ID              snowflake.ID
	PitchID         snowflake.ID
	MediaID         snowflake.ID
	TargetUserID    snowflake.ID
	TargetOrgID     snowflake.ID
	UserEmail       *string
	UserDisplayName *string
	OrgName         *string
}

func (r *repository) ListTargets(ctx context.Context, pitchIDs []snowflake.ID) ([]domain.PitchTargetAuthor, error) {
	if len(pitchIDs) == 0 {
		return []domain.PitchTargetAuthor{}, nil
	}

	var rows []targetRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT t.id, t.pitch_id, t.media_id, t.target_user_id, t.target_org_id,
		        u.email AS user_email, u.display_name AS user_display_name,
		        o.name AS org_name
		 FROM pitch_target_authors t
		 LEFT JOIN users u ON u.id = t.target_user_id
		 LEFT JOIN organizations o ON o.id = t.target_org_id
		 WHERE t.pitch_id IN ?
		 ORDER BY t.id ASC`,
		pitchIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	targets := make([]domain.PitchTargetAuthor, 0, len(rows))
	for _, row := range rows {
		target := domain.PitchTargetAuthor{
			ID:           row.ID,
			PitchID:      row.PitchID,
			MediaID:      row.MediaID,
			TargetUserID: row.TargetUserID,
			TargetOrgID:  row.TargetOrgID,
		}
		if row.UserEmail != nil {
			target.User = &domain.UserSummary{ID: row.TargetUserID, Email: *row.UserEmail, DisplayName: deref(row.UserDisplayName)}
		}
		if row.OrgName != nil {
			target.Organization = &domain.OrganizationSummary{ID: row.TargetOrgID, Name: *row.OrgName}
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
