package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	"github.com/smallbiznis/pitchdeck/internal/invitation/domain"
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

func (r *repository) InsertPending(ctx context.Context, inv domain.Invitation) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO invitations (id, org_id, inviter_id, invitee_id, role, status, created_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
		   SELECT 1 FROM invitations
		   WHERE org_id = ? AND invitee_id = ? AND status = ?
		 )`,
		inv.ID,
		inv.OrgID,
		inv.InviterID,
		inv.InviteeID,
		inv.Role,
		domain.StatusPending,
		inv.CreatedAt,
		inv.OrgID,
		inv.InviteeID,
		domain.StatusPending,
	)
	if db.IsDuplicateKeyErr(res.Error) {
		return false, nil
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) MarkResponded(ctx context.Context, id snowflake.ID, status domain.Status, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invitations
		 SET status = ?, responded_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		at,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type pendingRow struct {
	ID                 snowflake.ID
	OrgID              snowflake.ID
	InviterID          snowflake.ID
	InviteeID          snowflake.ID
	Role               identity.Role
	Status             domain.Status
	CreatedAt          time.Time
	OrgName            string
	OrgSlug            string
	InviterEmail       string
	InviterDisplayName string
}

func (r *repository) ListPendingForInvitee(ctx context.Context, inviteeID snowflake.ID) ([]domain.PendingInvitation, error) {
	var rows []pendingRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT i.id, i.org_id, i.inviter_id, i.invitee_id, i.role, i.status, i.created_at,
		        o.name AS org_name, o.slug AS org_slug,
		        u.email AS inviter_email, u.display_name AS inviter_display_name
		 FROM invitations i
		 JOIN organizations o ON o.id = i.org_id
		 JOIN users u ON u.id = i.inviter_id
		 WHERE i.invitee_id = ? AND i.status = ?
		 ORDER BY i.created_at DESC, i.id DESC`,
		inviteeID,
		domain.StatusPending,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.PendingInvitation, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.PendingInvitation{
			Invitation: domain.Invitation{
				ID:        row.ID,
				OrgID:     row.OrgID,
				InviterID: row.InviterID,
				InviteeID: row.InviteeID,
				Role:      row.Role,
				Status:    row.Status,
				CreatedAt: row.CreatedAt,
			},
			Organization: domain.OrganizationSummary{ID: row.OrgID, Name: row.OrgName, Slug: row.OrgSlug},
			Inviter:      domain.InviterSummary{ID: row.InviterID, Email: row.InviterEmail, DisplayName: row.InviterDisplayName},
		})
	}
	return items, nil
}
