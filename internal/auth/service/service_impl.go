package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/auth/domain"
	"github.com/smallbiznis/pitchdeck/internal/auth/password"
	"github.com/smallbiznis/pitchdeck/internal/auth/token"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	orgdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour

	minPasswordLength = 8
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	GenID       *snowflake.Node
	Clock       clock.Clock
	Tokens      *token.Issuer
	OrgSvc      orgdomain.Service
}

type Service struct {
	log         *zap.Logger
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	genID       *snowflake.Node
	clock       clock.Clock
	tokens      *token.Issuer
	orgSvc      orgdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("auth.service"),
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		genID:       p.GenID,
		clock:       p.Clock,
		tokens:      p.Tokens,
		orgSvc:      p.OrgSvc,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, domain.ErrInvalidDisplayName
	}
	if req.Role.IsZero() {
		return nil, identity.ErrInvalidRole
	}

	taken, err := s.repo.ExistsByEmailOrDisplayName(ctx, email, displayName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUserExists
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		DisplayName:  displayName,
		Role:         req.Role,
		PasswordHash: hashed,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", user.Role.String()))
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:                 user,
		RawToken:             rawToken,
		ExpiresAt:            session.ExpiresAt,
		SessionID:            session.ID,
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		return err
	}
	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (identity.Identity, error) {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		return identity.Identity{}, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return identity.Identity{}, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return identity.Identity{}, domain.ErrSessionExpired
	}

	user, err := s.repo.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return identity.Identity{}, domain.ErrInvalidSession
		}
		return identity.Identity{}, err
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.log.Warn("failed to touch session", zap.Error(err))
	}
	return user.Identity(), nil
}

func (s *Service) AuthenticateAccessToken(_ context.Context, raw string) (identity.Identity, error) {
	id, err := s.tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return identity.Identity{}, domain.ErrInvalidSession
	}
	return id, nil
}

func (s *Service) Profile(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	orgs, err := s.orgSvc.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{User: *user, Organizations: orgs}, nil
}

func (s *Service) lookupSession(ctx context.Context, rawToken string) (*domain.Session, error) {
	raw := strings.TrimSpace(rawToken)
	if raw == "" {
		return nil, domain.ErrInvalidSession
	}
	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(raw))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}
	return session, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
