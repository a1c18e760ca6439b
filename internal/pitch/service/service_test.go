package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	auditrepository "github.com/smallbiznis/pitchdeck/internal/audit/repository"
	auditservice "github.com/smallbiznis/pitchdeck/internal/audit/service"
	authdomain "github.com/smallbiznis/pitchdeck/internal/auth/domain"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/events"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	invitationdomain "github.com/smallbiznis/pitchdeck/internal/invitation/domain"
	invitationrepository "github.com/smallbiznis/pitchdeck/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/pitchdeck/internal/invitation/service"
	mediadomain "github.com/smallbiznis/pitchdeck/internal/media/domain"
	mediarepository "github.com/smallbiznis/pitchdeck/internal/media/repository"
	mediaservice "github.com/smallbiznis/pitchdeck/internal/media/service"
	orgdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	orgrepository "github.com/smallbiznis/pitchdeck/internal/organization/repository"
	orgservice "github.com/smallbiznis/pitchdeck/internal/organization/service"
	"github.com/smallbiznis/pitchdeck/internal/pitch/domain"
	"github.com/smallbiznis/pitchdeck/internal/pitch/repository"
	"github.com/smallbiznis/pitchdeck/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	svc       domain.Service
	orgSvc    orgdomain.Service
	mediaSvc  mediadomain.Service
	inviteSvc invitationdomain.Service
	audit     auditdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&orgdomain.Organization{},
		&orgdomain.Membership{},
		&invitationdomain.Invitation{},
		&mediadomain.Media{},
		&mediadomain.MediaAuthor{},
		&domain.Pitch{},
		&domain.PitchTag{},
		&domain.PitchTargetAuthor{},
		&auditdomain.AuditLog{},
		&events.OutboxEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: clk,
	})
	publisher := events.NewOutboxPublisher(conn, node)
	orgRepo := orgrepository.NewRepository(conn)
	mediaRepo := mediarepository.NewRepository(conn)

	return fixture{
		db:    conn,
		node:  node,
		clock: clk,
		audit: auditSvc,
		orgSvc: orgservice.NewService(orgservice.Params{
			DB: conn, Log: log, Repo: orgRepo, GenID: node, Clock: clk,
		}),
		mediaSvc: mediaservice.NewService(mediaservice.Params{
			DB: conn, Log: log, Repo: mediaRepo, OrgRepo: orgRepo, GenID: node, Clock: clk,
		}),
		inviteSvc: invitationservice.NewService(invitationservice.Params{
			DB: conn, Log: log, Repo: invitationrepository.NewRepository(conn), OrgRepo: orgRepo, GenID: node, Clock: clk,
		}),
		svc: NewService(Params{
			DB:        conn,
			Log:       log,
			Repo:      repository.NewRepository(conn),
			MediaRepo: mediaRepo,
			OrgRepo:   orgRepo,
			GenID:     node,
			Clock:     clk,
			AuditSvc:  auditSvc,
			Publisher: publisher,
		}),
	}
}

func (f fixture) user(t *testing.T, name string, role identity.Role) identity.Identity {
	t.Helper()
	u := authdomain.User{
		ID:           f.node.Generate(),
		Email:        name + "@example.com",
		DisplayName:  name,
		Role:         role,
		PasswordHash: "x",
		CreatedAt:    f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&u).Error)
	return u.Identity()
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

type world struct {
	manager identity.Identity
	writer  identity.Identity
	org     *orgdomain.Organization
	media   *mediadomain.Media
}

func (f fixture) world(t *testing.T) world {
	t.Helper()
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org, err := f.orgSvc.Create(ctx, manager, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	require.NoError(t, f.orgSvc.AddMember(ctx, writer.UserID, org.ID))
	media, err := f.mediaSvc.Create(ctx, writer, mediadomain.CreateRequest{
		OrgID: org.ID, Title: "Track 1", Duration: "3:10", FilePath: "media/track-1.mp3", ContentType: "audio/mpeg", SizeBytes: 10,
	})
	require.NoError(t, err)
	return world{manager: manager, writer: writer, org: org, media: media}
}

func TestCreateDerivesAuthorOrgFromMedia(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)

	pitch, err := f.svc.Create(context.Background(), w.manager, domain.CreateRequest{
		MediaID:     w.media.ID,
		Description: "Perfect for the summer single",
		Tags:        []string{"pop", "pop", "summer"},
		Targets: []domain.TargetAuthor{
			{MediaID: w.media.ID, TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, w.org.ID, pitch.AuthorOrgID)
	assert.Equal(t, w.manager.UserID, pitch.AuthorUserID)
	assert.Len(t, pitch.Tags, 3)
	assert.Len(t, pitch.Targets, 1)

	assert.Equal(t, int64(3), f.count(t, &domain.PitchTag{}))
	assert.Equal(t, int64(1), f.count(t, &domain.PitchTargetAuthor{}))
	assert.Equal(t, int64(1), f.count(t, &events.OutboxEvent{}))
}

func TestCreateTargetMismatchWritesNothing(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)

	_, err := f.svc.Create(context.Background(), w.manager, domain.CreateRequest{
		MediaID:     w.media.ID,
		Description: "pitch",
		Tags:        []string{"ballad"},
		Targets: []domain.TargetAuthor{
			{MediaID: w.media.ID, TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID},
			{MediaID: f.node.Generate(), TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID},
		},
	})
	assert.ErrorIs(t, err, domain.ErrTargetMediaMismatch)

	assert.Zero(t, f.count(t, &domain.Pitch{}))
	assert.Zero(t, f.count(t, &domain.PitchTag{}))
	assert.Zero(t, f.count(t, &domain.PitchTargetAuthor{}))
}

func TestCreateRollsBackWhenTargetInsertFails(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	require.NoError(t, f.db.Migrator().DropTable(&domain.PitchTargetAuthor{}))

	_, err := f.svc.Create(context.Background(), w.manager, domain.CreateRequest{
		MediaID:     w.media.ID,
		Description: "pitch",
		Tags:        []string{"ballad", "slow"},
		Targets:     []domain.TargetAuthor{{MediaID: w.media.ID, TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID}},
	})
	require.Error(t, err)

	assert.Zero(t, f.count(t, &domain.Pitch{}))
	assert.Zero(t, f.count(t, &domain.PitchTag{}))
}

func TestCreatePreconditions(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	outsider := f.user(t, "outsider", identity.RoleManager)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, w.manager, domain.CreateRequest{MediaID: f.node.Generate(), Description: "x"})
	assert.ErrorIs(t, err, mediadomain.ErrMediaNotFound)

	_, err = f.svc.Create(ctx, outsider, domain.CreateRequest{MediaID: w.media.ID, Description: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotMember)

	_, err = f.svc.Create(ctx, w.manager, domain.CreateRequest{MediaID: w.media.ID, Description: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidDescription)
}

func TestUpdateReplacesTags(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	ctx := context.Background()

	pitch, err := f.svc.Create(ctx, w.manager, domain.CreateRequest{
		MediaID: w.media.ID, Description: "first", Tags: []string{"a", "b"},
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	tags := []string{"c"}
	updated, err := f.svc.Update(ctx, w.manager, pitch.ID, domain.UpdateRequest{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "first", updated.Description)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "c", updated.Tags[0].Value)
	assert.Equal(t, int64(1), f.count(t, &domain.PitchTag{}))

	description := "second"
	updated, err = f.svc.Update(ctx, w.manager, pitch.ID, domain.UpdateRequest{Description: &description})
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Description)
	require.Len(t, updated.Tags, 1)

	stored, err := repository.NewRepository(f.db).GetByID(ctx, pitch.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", stored.Description)
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt))

	empty := []string{}
	updated, err = f.svc.Update(ctx, w.manager, pitch.ID, domain.UpdateRequest{Tags: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)
	assert.Zero(t, f.count(t, &domain.PitchTag{}))
}

func TestUpdateChecks(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	outsider := f.user(t, "outsider", identity.RoleManager)
	ctx := context.Background()

	pitch, err := f.svc.Create(ctx, w.manager, domain.CreateRequest{MediaID: w.media.ID, Description: "d"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, w.manager, pitch.ID, domain.UpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyUpdate)

	description := "new"
	_, err = f.svc.Update(ctx, w.manager, f.node.Generate(), domain.UpdateRequest{Description: &description})
	assert.ErrorIs(t, err, domain.ErrPitchNotFound)

	_, err = f.svc.Update(ctx, outsider, pitch.ID, domain.UpdateRequest{Description: &description})
	assert.ErrorIs(t, err, apperrors.ErrNotMember)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	outsider := f.user(t, "outsider", identity.RoleManager)
	ctx := context.Background()

	pitch, err := f.svc.Create(ctx, w.manager, domain.CreateRequest{
		MediaID:     w.media.ID,
		Description: "d",
		Tags:        []string{"a"},
		Targets:     []domain.TargetAuthor{{MediaID: w.media.ID, TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, outsider, pitch.ID), apperrors.ErrNotMember)
	require.NoError(t, f.svc.Delete(ctx, w.manager, pitch.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, w.manager, pitch.ID), domain.ErrPitchNotFound)

	assert.Zero(t, f.count(t, &domain.Pitch{}))
	assert.Zero(t, f.count(t, &domain.PitchTag{}))
	assert.Zero(t, f.count(t, &domain.PitchTargetAuthor{}))

	logs, err := f.audit.List(ctx, w.org.ID, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, logs.AuditLogs, 1)
	assert.Equal(t, auditdomain.ActionPitchDeleted, logs.AuditLogs[0].Action)
}

func TestDeleteRollsBackWhenCascadeFails(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	ctx := context.Background()

	pitch, err := f.svc.Create(ctx, w.manager, domain.CreateRequest{
		MediaID:     w.media.ID,
		Description: "d",
		Tags:        []string{"a", "b"},
		Targets:     []domain.TargetAuthor{{MediaID: w.media.ID, TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID}},
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Migrator().DropTable(&domain.PitchTargetAuthor{}))

	require.Error(t, f.svc.Delete(ctx, w.manager, pitch.ID))

	assert.Equal(t, int64(1), f.count(t, &domain.Pitch{}))
	assert.Equal(t, int64(2), f.count(t, &domain.PitchTag{}))
}

func TestListForTargetUser(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	ctx := context.Background()

	older, err := f.svc.Create(ctx, w.manager, domain.CreateRequest{
		MediaID:     w.media.ID,
		Description: "older",
		Tags:        []string{"x"},
		Targets:     []domain.TargetAuthor{{MediaID: w.media.ID, TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID}},
	})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	newer, err := f.svc.Create(ctx, w.manager, domain.CreateRequest{
		MediaID:     w.media.ID,
		Description: "newer",
		Targets:     []domain.TargetAuthor{{MediaID: w.media.ID, TargetUserID: w.writer.UserID, TargetOrgID: w.org.ID}},
	})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, w.manager, domain.CreateRequest{MediaID: w.media.ID, Description: "untargeted"})
	require.NoError(t, err)

	items, err := f.svc.ListForTargetUser(ctx, w.writer.UserID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	assert.Equal(t, older.ID, items[1].ID)

	assert.Empty(t, items[0].Tags)
	require.Len(t, items[1].Tags, 1)
	assert.Equal(t, "x", items[1].Tags[0].Value)
	require.NotNil(t, items[1].Media)
	assert.Equal(t, "Track 1", items[1].Media.Title)
	require.Len(t, items[1].Targets, 1)
	require.NotNil(t, items[1].Targets[0].User)
	assert.Equal(t, "writer", items[1].Targets[0].User.DisplayName)
	require.NotNil(t, items[1].Targets[0].Organization)
	assert.Equal(t, "Acme", items[1].Targets[0].Organization.Name)

	none, err := f.svc.ListForTargetUser(ctx, w.manager.UserID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCollaborationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m1 := f.user(t, "m1", identity.RoleManager)
	s1 := f.user(t, "s1", identity.RoleSongwriter)
	u2 := f.user(t, "u2", identity.RoleSongwriter)

	acme, err := f.orgSvc.Create(ctx, m1, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	ok, err := f.orgSvc.IsMember(ctx, m1.UserID, acme.ID)
	require.NoError(t, err)
	require.True(t, ok)

	inv, err := f.inviteSvc.Invite(ctx, m1, acme.ID, s1.Email, identity.RoleSongwriter)
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusPending, inv.Status)

	accepted, err := f.inviteSvc.Respond(ctx, s1, inv.ID, invitationdomain.StatusAccept)
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusAccept, accepted.Status)
	ok, err = f.orgSvc.IsMember(ctx, s1.UserID, acme.ID)
	require.NoError(t, err)
	require.True(t, ok)

	track, err := f.mediaSvc.Create(ctx, s1, mediadomain.CreateRequest{
		OrgID: acme.ID, Title: "Track 1", Duration: "2:59", FilePath: "media/track-1.mp3", ContentType: "audio/mpeg", SizeBytes: 1,
	})
	require.NoError(t, err)
	require.Len(t, track.Authors, 1)
	assert.Equal(t, s1.UserID, track.Authors[0].UserID)

	pitch, err := f.svc.Create(ctx, m1, domain.CreateRequest{MediaID: track.ID, Description: "ballad pitch", Tags: []string{"ballad"}})
	require.NoError(t, err)
	assert.Len(t, pitch.Tags, 1)
	assert.Empty(t, pitch.Targets)
	assert.Equal(t, int64(1), f.count(t, &domain.PitchTag{}))
	assert.Zero(t, f.count(t, &domain.PitchTargetAuthor{}))

	_, err = f.mediaSvc.Create(ctx, u2, mediadomain.CreateRequest{
		OrgID: acme.ID, Title: "Intruder", Duration: "1:00", FilePath: "media/intruder.mp3", ContentType: "audio/mpeg", SizeBytes: 1,
	})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, int64(1), f.count(t, &mediadomain.Media{}))
}
