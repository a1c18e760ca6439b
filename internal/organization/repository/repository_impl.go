package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"github.com/smallbiznis/pitchdeck/internal/organization/domain"
	"github.com/smallbiznis/pitchdeck/pkg/db"
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

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, created_at)
		 VALUES (?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.CreatedAt,
	).Error
}

// AddMember reports apperrors.ErrAlreadyMember when the pair already exists.
func (r *repository) AddMember(ctx context.Context, member domain.Membership) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO memberships (id, org_id, user_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.CreatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return apperrors.Wrap(apperrors.ErrAlreadyMember, err)
	}
	return err
}

func (r *repository) IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) GetByID(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", orgID).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.Organization, error) {
	var items []domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, o.created_at
		 FROM organizations o
		 JOIN memberships m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC, o.id ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindUserByEmail(ctx context.Context, email string) (*domain.UserRef, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.ErrTargetNotFound
	}
	var rows []domain.UserRef
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, role
		 FROM users
		 WHERE email = ?
		 LIMIT 1`,
		email,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrTargetNotFound
	}
	return &rows[0], nil
}
