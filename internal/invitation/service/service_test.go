package service

import (
	"context"
	"sync"
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
	"github.com/smallbiznis/pitchdeck/internal/invitation/domain"
	"github.com/smallbiznis/pitchdeck/internal/invitation/repository"
	orgdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	orgrepository "github.com/smallbiznis/pitchdeck/internal/organization/repository"
	orgservice "github.com/smallbiznis/pitchdeck/internal/organization/service"
	"github.com/smallbiznis/pitchdeck/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func (l *fakeLocker) key(orgID, inviteeID snowflake.ID) string {
	return orgID.String() + ":" + inviteeID.String()
}

func (l *fakeLocker) TryLockInvite(_ context.Context, orgID, inviteeID snowflake.ID) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.key(orgID, inviteeID)
	if l.held[k] {
		return "", false, nil
	}
	l.held[k] = true
	return "token", true, nil
}

func (l *fakeLocker) ReleaseInvite(_ context.Context, orgID, inviteeID snowflake.ID, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, l.key(orgID, inviteeID))
	l.released++
	return nil
}

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	svc    domain.Service
	orgSvc orgdomain.Service
	audit  auditdomain.Service
	locker *fakeLocker
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&orgdomain.Organization{},
		&orgdomain.Membership{},
		&domain.Invitation{},
		&auditdomain.AuditLog{},
		&events.OutboxEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: clk,
	})
	orgRepo := orgrepository.NewRepository(conn)
	orgSvc := orgservice.NewService(orgservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Repo:  orgRepo,
		GenID: node,
		Clock: clk,
	})
	locker := &fakeLocker{held: map[string]bool{}}

	svc := NewService(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Repo:      repository.NewRepository(conn),
		OrgRepo:   orgRepo,
		GenID:     node,
		Clock:     clk,
		Locker:    locker,
		AuditSvc:  auditSvc,
		Publisher: events.NewOutboxPublisher(conn, node),
	})
	return fixture{db: conn, node: node, clock: clk, svc: svc, orgSvc: orgSvc, audit: auditSvc, locker: locker}
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

func (f fixture) org(t *testing.T, owner identity.Identity, name string) *orgdomain.Organization {
	t.Helper()
	org, err := f.orgSvc.Create(context.Background(), owner, orgdomain.CreateOrganizationRequest{Name: name})
	require.NoError(t, err)
	return org
}

func TestInvitePreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	outsider := f.user(t, "outsider", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	member := f.user(t, "member", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")
	require.NoError(t, f.orgSvc.AddMember(ctx, member.UserID, org.ID))

	cases := []struct {
		name   string
		caller identity.Identity
		orgID  snowflake.ID
		target string
		role   identity.Role
		want   error
	}{
		{name: "org missing", caller: outsider, orgID: f.node.Generate(), target: writer.Email, role: identity.RoleSongwriter, want: apperrors.ErrOrgNotFound},
		{name: "inviter not member", caller: outsider, orgID: org.ID, target: writer.Email, role: identity.RoleSongwriter, want: apperrors.ErrNotMember},
		{name: "target missing", caller: manager, orgID: org.ID, target: "nobody@example.com", role: identity.RoleSongwriter, want: apperrors.ErrTargetNotFound},
		{name: "role mismatch", caller: manager, orgID: org.ID, target: outsider.Email, role: identity.RoleSongwriter, want: apperrors.ErrRoleMismatch},
		{name: "already member", caller: manager, orgID: org.ID, target: member.Email, role: identity.RoleSongwriter, want: apperrors.ErrAlreadyMember},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Invite(ctx, tc.caller, tc.orgID, tc.target, tc.role)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&domain.Invitation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInviteRejectsDuplicatePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	inv, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, inv.Status)
	assert.Equal(t, 1, f.locker.released)

	_, err = f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	assert.ErrorIs(t, err, domain.ErrDuplicatePendingInvite)

	var count int64
	require.NoError(t, f.db.Model(&domain.Invitation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInviteRejectedWhileLockHeld(t *testing.T) {
	f := newFixture(t)
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	_, acquired, err := f.locker.TryLockInvite(context.Background(), org.ID, writer.UserID)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = f.svc.Invite(context.Background(), manager, org.ID, writer.Email, identity.RoleSongwriter)
	assert.ErrorIs(t, err, domain.ErrDuplicatePendingInvite)
}

func TestInviteAllowedAgainAfterReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	first, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, writer, first.ID, domain.StatusReject)
	require.NoError(t, err)

	second, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestListPendingNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	older := f.org(t, manager, "Older Org")
	newer := f.org(t, manager, "Newer Org")

	_, err := f.svc.Invite(ctx, manager, older.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Invite(ctx, manager, newer.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)

	items, err := f.svc.ListPending(ctx, writer.UserID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].Organization.ID)
	assert.Equal(t, "Newer Org", items[0].Organization.Name)
	assert.Equal(t, older.ID, items[1].Organization.ID)
	assert.Equal(t, manager.UserID, items[0].Inviter.ID)
	assert.Equal(t, "manager@example.com", items[0].Inviter.Email)
	assert.Equal(t, "manager", items[0].Inviter.DisplayName)

	empty, err := f.svc.ListPending(ctx, manager.UserID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRespondAcceptJoinsOrganisation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	inv, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	accepted, err := f.svc.Respond(ctx, writer, inv.ID, domain.StatusAccept)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccept, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)
	assert.True(t, accepted.RespondedAt.Equal(f.clock.Now()))

	ok, err := f.orgSvc.IsMember(ctx, writer.UserID, org.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Respond(ctx, writer, inv.ID, domain.StatusReject)
	assert.ErrorIs(t, err, domain.ErrAlreadyResponded)

	pending, err := f.svc.ListPending(ctx, writer.UserID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	logs, err := f.audit.List(ctx, org.ID, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	actions := make([]string, 0, len(logs.AuditLogs))
	for _, entry := range logs.AuditLogs {
		actions = append(actions, entry.Action)
	}
	assert.Contains(t, actions, auditdomain.ActionInvitationCreated)
	assert.Contains(t, actions, auditdomain.ActionInvitationAccepted)

	var topics []string
	require.NoError(t, f.db.Model(&events.OutboxEvent{}).Order("created_at").Pluck("topic", &topics).Error)
	assert.Contains(t, topics, events.TopicInvitationCreated)
	assert.Contains(t, topics, events.TopicInvitationResponded)
}

func TestRespondAcceptRollsBackWhenMembershipInsertFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	inv, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)
	require.NoError(t, f.db.Migrator().DropTable(&orgdomain.Membership{}))

	_, err = f.svc.Respond(ctx, writer, inv.ID, domain.StatusAccept)
	require.Error(t, err)

	var stored domain.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", inv.ID).Error)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Nil(t, stored.RespondedAt)
}

func TestRespondRejectLeavesMembershipUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	inv, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)

	rejected, err := f.svc.Respond(ctx, writer, inv.ID, domain.StatusReject)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReject, rejected.Status)

	ok, err := f.orgSvc.IsMember(ctx, writer.UserID, org.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRespondChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	other := f.user(t, "other", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	inv, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, writer, f.node.Generate(), domain.StatusAccept)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)

	_, err = f.svc.Respond(ctx, other, inv.ID, domain.StatusAccept)
	assert.ErrorIs(t, err, domain.ErrNotInvitee)

	_, err = f.svc.Respond(ctx, writer, inv.ID, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)
}

func TestRespondAcceptWhenAlreadyMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	peer := f.user(t, "peer", identity.RoleManager)
	org := f.org(t, manager, "Acme")

	inv, err := f.svc.Invite(ctx, manager, org.ID, peer.Email, identity.RoleManager)
	require.NoError(t, err)
	_, err = f.orgSvc.AddManager(ctx, manager, org.ID, peer.Email)
	require.NoError(t, err)

	accepted, err := f.svc.Respond(ctx, peer, inv.ID, domain.StatusAccept)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccept, accepted.Status)

	var count int64
	require.NoError(t, f.db.Model(&orgdomain.Membership{}).Where("org_id = ? AND user_id = ?", org.ID, peer.UserID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentAcceptSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.user(t, "manager", identity.RoleManager)
	writer := f.user(t, "writer", identity.RoleSongwriter)
	org := f.org(t, manager, "Acme")

	inv, err := f.svc.Invite(ctx, manager, org.ID, writer.Email, identity.RoleSongwriter)
	require.NoError(t, err)

	const attempts = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Respond(ctx, writer, inv.ID, domain.StatusAccept)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.KindOf(err) == apperrors.KindConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	var count int64
	require.NoError(t, f.db.Model(&orgdomain.Membership{}).Where("org_id = ? AND user_id = ?", org.ID, writer.UserID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestParseDecision(t *testing.T) {
	status, err := domain.ParseDecision(" accept ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccept, status)

	_, err = domain.ParseDecision("PENDING")
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)
}
