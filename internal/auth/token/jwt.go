// Package token issues and verifies short-lived bearer access tokens.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/pitchdeck/internal/clock"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	"go.uber.org/zap"
)

const (
	DefaultTTL = 15 * time.Minute
	issuer     = "pitchdeck"
)

var ErrInvalidToken = errors.New("invalid access token")

// Claims carries the caller identity inside the token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewIssuer signs with AUTH_JWT_SECRET. Without one a random per-process key is
// used, so tokens do not survive restarts.
func NewIssuer(cfg config.Config, clk clock.Clock, log *zap.Logger) (*Issuer, error) {
	secret := []byte(cfg.AuthJWTSecret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return nil, errors.New("AUTH_JWT_SECRET is required in production")
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		log.Warn("AUTH_JWT_SECRET not set; using an ephemeral signing key")
	}
	return NewIssuerWithSecret(secret, DefaultTTL, clk), nil
}

func NewIssuerWithSecret(secret []byte, ttl time.Duration, clk clock.Clock) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, ttl: ttl, clock: clk}
}

// Issue returns a signed token and its expiry.
func (i *Issuer) Issue(id identity.Identity) (string, time.Time, error) {
	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Email: id.Email,
		Role:  id.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the embedded identity.
func (i *Issuer) Parse(raw string) (identity.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return identity.Identity{}, ErrInvalidToken
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return identity.Identity{}, ErrInvalidToken
	}
	return identity.Identity{UserID: userID, Email: claims.Email, Role: role}, nil
}
