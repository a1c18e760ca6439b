package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	authdomain "github.com/smallbiznis/pitchdeck/internal/auth/domain"
	"github.com/smallbiznis/pitchdeck/internal/auth/session"
	"github.com/smallbiznis/pitchdeck/internal/authorization"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	invitationdomain "github.com/smallbiznis/pitchdeck/internal/invitation/domain"
	mediadomain "github.com/smallbiznis/pitchdeck/internal/media/domain"
	organizationdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	pitchdomain "github.com/smallbiznis/pitchdeck/internal/pitch/domain"
	"github.com/smallbiznis/pitchdeck/internal/ratelimit"
	"github.com/smallbiznis/pitchdeck/internal/storage/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	managerCaller    = identity.Identity{UserID: snowflake.ID(1), Email: "manager@example.com", Role: identity.RoleManager}
	songwriterCaller = identity.Identity{UserID: snowflake.ID(2), Email: "writer@example.com", Role: identity.RoleSongwriter}
)

const (
	managerToken    = "manager-token"
	songwriterToken = "songwriter-token"
	managerSession  = "manager-session"
)

type fakeAuthService struct {
	tokens   map[string]identity.Identity
	sessions map[string]identity.Identity

	registered  []authdomain.RegisterRequest
	loginResult *authdomain.LoginResult
	loginErr    error
	loggedOut   []string
}

func (f *fakeAuthService) Register(_ context.Context, req authdomain.RegisterRequest) (*authdomain.User, error) {
	f.registered = append(f.registered, req)
	return &authdomain.User{
		ID:          snowflake.ID(900),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	}, nil
}

func (f *fakeAuthService) Login(_ context.Context, _ authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	return f.loginResult, f.loginErr
}

func (f *fakeAuthService) Logout(_ context.Context, rawToken string) error {
	f.loggedOut = append(f.loggedOut, rawToken)
	return nil
}

func (f *fakeAuthService) Authenticate(_ context.Context, rawToken string) (identity.Identity, error) {
	if id, ok := f.sessions[rawToken]; ok {
		return id, nil
	}
	return identity.Identity{}, authdomain.ErrInvalidSession
}

func (f *fakeAuthService) AuthenticateAccessToken(_ context.Context, token string) (identity.Identity, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return identity.Identity{}, authdomain.ErrInvalidSession
}

func (f *fakeAuthService) Profile(_ context.Context, userID snowflake.ID) (*authdomain.Profile, error) {
	return &authdomain.Profile{
		User:          authdomain.User{ID: userID},
		Organizations: []organizationdomain.Organization{},
	}, nil
}

type membershipKey struct {
	userID snowflake.ID
	orgID  snowflake.ID
}

type fakeOrganizationService struct {
	orgs    map[snowflake.ID]*organizationdomain.Organization
	members map[membershipKey]bool

	created         []organizationdomain.CreateOrganizationRequest
	managersAdded   []string
	isMemberQueries int
}

func newFakeOrganizationService() *fakeOrganizationService {
	return &fakeOrganizationService{
		orgs:    map[snowflake.ID]*organizationdomain.Organization{},
		members: map[membershipKey]bool{},
	}
}

func (f *fakeOrganizationService) addOrg(id snowflake.ID, name string, members ...snowflake.ID) {
	f.orgs[id] = &organizationdomain.Organization{ID: id, Name: name, Slug: name}
	for _, userID := range members {
		f.members[membershipKey{userID: userID, orgID: id}] = true
	}
}

func (f *fakeOrganizationService) Create(_ context.Context, caller identity.Identity, req organizationdomain.CreateOrganizationRequest) (*organizationdomain.Organization, error) {
	f.created = append(f.created, req)
	org := &organizationdomain.Organization{ID: snowflake.ID(500), Name: req.Name, Slug: "slug"}
	f.orgs[org.ID] = org
	f.members[membershipKey{userID: caller.UserID, orgID: org.ID}] = true
	return org, nil
}

func (f *fakeOrganizationService) AddManager(_ context.Context, _ identity.Identity, orgID snowflake.ID, targetEmail string) (*organizationdomain.Membership, error) {
	f.managersAdded = append(f.managersAdded, targetEmail)
	return &organizationdomain.Membership{ID: snowflake.ID(600), OrgID: orgID, UserID: snowflake.ID(3)}, nil
}

func (f *fakeOrganizationService) AddMember(_ context.Context, userID snowflake.ID, orgID snowflake.ID) error {
	f.members[membershipKey{userID: userID, orgID: orgID}] = true
	return nil
}

func (f *fakeOrganizationService) IsMember(_ context.Context, userID snowflake.ID, orgID snowflake.ID) (bool, error) {
	f.isMemberQueries++
	return f.members[membershipKey{userID: userID, orgID: orgID}], nil
}

func (f *fakeOrganizationService) ListByUser(_ context.Context, userID snowflake.ID) ([]organizationdomain.Organization, error) {
	out := []organizationdomain.Organization{}
	for key := range f.members {
		if key.userID == userID {
			out = append(out, *f.orgs[key.orgID])
		}
	}
	return out, nil
}

func (f *fakeOrganizationService) GetByID(_ context.Context, orgID snowflake.ID) (*organizationdomain.Organization, error) {
	org, ok := f.orgs[orgID]
	if !ok {
		return nil, apperrors.ErrOrgNotFound
	}
	return org, nil
}

type inviteCall struct {
	orgID  snowflake.ID
	target string
	role   identity.Role
}

type fakeInvitationService struct {
	invites   []inviteCall
	inviteErr error
	responses []invitationdomain.Status
}

func (f *fakeInvitationService) Invite(_ context.Context, caller identity.Identity, orgID snowflake.ID, targetEmail string, role identity.Role) (*invitationdomain.Invitation, error) {
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	f.invites = append(f.invites, inviteCall{orgID: orgID, target: targetEmail, role: role})
	return &invitationdomain.Invitation{
		ID:        snowflake.ID(700),
		OrgID:     orgID,
		InviterID: caller.UserID,
		InviteeID: snowflake.ID(2),
		Role:      role,
		Status:    invitationdomain.StatusPending,
	}, nil
}

func (f *fakeInvitationService) ListPending(_ context.Context, _ snowflake.ID) ([]invitationdomain.PendingInvitation, error) {
	return []invitationdomain.PendingInvitation{}, nil
}

func (f *fakeInvitationService) Respond(_ context.Context, caller identity.Identity, inviteID snowflake.ID, decision invitationdomain.Status) (*invitationdomain.Invitation, error) {
	f.responses = append(f.responses, decision)
	return &invitationdomain.Invitation{ID: inviteID, InviteeID: caller.UserID, Status: decision}, nil
}

type fakeMediaService struct {
	created   []mediadomain.CreateRequest
	createErr error
}

func (f *fakeMediaService) Create(_ context.Context, _ identity.Identity, req mediadomain.CreateRequest) (*mediadomain.Media, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &mediadomain.Media{
		ID:          snowflake.ID(800),
		Title:       req.Title,
		Duration:    req.Duration,
		FilePath:    req.FilePath,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		OrgID:       req.OrgID,
	}, nil
}

func (f *fakeMediaService) ListForUser(_ context.Context, _ snowflake.ID) ([]mediadomain.Media, error) {
	return []mediadomain.Media{}, nil
}

func (f *fakeMediaService) GetByID(_ context.Context, _ snowflake.ID) (*mediadomain.Media, error) {
	return nil, mediadomain.ErrMediaNotFound
}

type fakePitchService struct {
	created []pitchdomain.CreateRequest
	updates []pitchdomain.UpdateRequest
	deleted []snowflake.ID
}

func (f *fakePitchService) Create(_ context.Context, caller identity.Identity, req pitchdomain.CreateRequest) (*pitchdomain.Pitch, error) {
	f.created = append(f.created, req)
	return &pitchdomain.Pitch{ID: snowflake.ID(1000), MediaID: req.MediaID, AuthorUserID: caller.UserID, Description: req.Description}, nil
}

func (f *fakePitchService) Update(_ context.Context, _ identity.Identity, pitchID snowflake.ID, req pitchdomain.UpdateRequest) (*pitchdomain.Pitch, error) {
	f.updates = append(f.updates, req)
	return &pitchdomain.Pitch{ID: pitchID}, nil
}

func (f *fakePitchService) Delete(_ context.Context, _ identity.Identity, pitchID snowflake.ID) error {
	f.deleted = append(f.deleted, pitchID)
	return nil
}

func (f *fakePitchService) ListForTargetUser(_ context.Context, _ snowflake.ID) ([]pitchdomain.Pitch, error) {
	return []pitchdomain.Pitch{}, nil
}

type fakeAuditService struct {
	listedOrgs []snowflake.ID
}

func (f *fakeAuditService) Record(context.Context, auditdomain.Entry) error {
	return nil
}

func (f *fakeAuditService) List(_ context.Context, orgID snowflake.ID, _ auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	f.listedOrgs = append(f.listedOrgs, orgID)
	return auditdomain.ListAuditLogResponse{AuditLogs: []auditdomain.AuditLog{}}, nil
}

type fakeLimiter struct {
	result *ratelimit.RateLimitResult
	err    error
	calls  []string
}

func (f *fakeLimiter) Allow(_ context.Context, endpoint string, _ snowflake.ID) (*ratelimit.RateLimitResult, error) {
	f.calls = append(f.calls, endpoint)
	return f.result, f.err
}

type testServer struct {
	engine *gin.Engine
	server *Server

	auth   *fakeAuthService
	orgs   *fakeOrganizationService
	invite *fakeInvitationService
	media  *fakeMediaService
	pitch  *fakePitchService
	audit  *fakeAuditService
	store  *mocks.MockStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	ts := &testServer{
		engine: gin.New(),
		auth: &fakeAuthService{
			tokens: map[string]identity.Identity{
				managerToken:    managerCaller,
				songwriterToken: songwriterCaller,
			},
			sessions: map[string]identity.Identity{
				managerSession: managerCaller,
			},
		},
		orgs:   newFakeOrganizationService(),
		invite: &fakeInvitationService{},
		media:  &fakeMediaService{},
		pitch:  &fakePitchService{},
		audit:  &fakeAuditService{},
		store:  mocks.NewMockStore(gomock.NewController(t)),
	}
	ts.engine.Use(ErrorHandlingMiddleware())

	ts.server = &Server{
		engine:          ts.engine,
		log:             zap.NewNop(),
		authsvc:         ts.auth,
		sessions:        session.NewManager(config.Config{}),
		authzSvc:        authz,
		auditSvc:        ts.audit,
		organizationSvc: ts.orgs,
		invitationSvc:   ts.invite,
		mediaSvc:        ts.media,
		pitchSvc:        ts.pitch,
		store:           ts.store,
	}
	ts.server.RegisterRoutes()
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Errors  []struct {
			Field string `json:"field"`
			Code  string `json:"code"`
		} `json:"errors"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func firstCode(body errorBody) string {
	if len(body.Error.Errors) == 0 {
		return ""
	}
	return body.Error.Errors[0].Code
}

func newLoginResult() *authdomain.LoginResult {
	expires := time.Now().Add(time.Hour)
	return &authdomain.LoginResult{
		User:                 &authdomain.User{ID: managerCaller.UserID, Email: managerCaller.Email, Role: identity.RoleManager},
		RawToken:             "raw-session",
		ExpiresAt:            expires,
		AccessToken:          "access-token",
		AccessTokenExpiresAt: expires,
	}
}
