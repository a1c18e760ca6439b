package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	orgdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	// Authenticate resolves a session cookie value.
	Authenticate(ctx context.Context, rawToken string) (identity.Identity, error)
	// AuthenticateAccessToken resolves a bearer JWT.
	AuthenticateAccessToken(ctx context.Context, token string) (identity.Identity, error)
	Profile(ctx context.Context, userID snowflake.ID) (*Profile, error)
}

type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        identity.Role
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User                 *User
	RawToken             string
	ExpiresAt            time.Time
	SessionID            snowflake.ID
	AccessToken          string
	AccessTokenExpiresAt time.Time
}

type Profile struct {
	User          User                     `json:"user"`
	Organizations []orgdomain.Organization `json:"organizations"`
}
