// Package identity carries the verified caller of a request.
package identity

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
)

// Role is an account role. Only the declared constants are valid.
type Role struct {
	name string
}

var (
	RoleSongwriter = Role{name: "SONGWRITER"}
	RoleManager    = Role{name: "MANAGER"}
)

var ErrInvalidRole = apperrors.New(apperrors.KindValidationFailed, "invalid_role", "role must be SONGWRITER or MANAGER")

// ParseRole accepts the wire names case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case RoleSongwriter.name:
		return RoleSongwriter, nil
	case RoleManager.name:
		return RoleManager, nil
	default:
		return Role{}, ErrInvalidRole
	}
}

func (r Role) String() string { return r.name }

func (r Role) IsZero() bool { return r.name == "" }

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.name), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role as its wire name.
func (r Role) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, ErrInvalidRole
	}
	return r.name, nil
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("identity: cannot scan %T into Role", src)
	}
}

// Identity is the authenticated caller.
type Identity struct {
	UserID snowflake.ID
	Email  string
	Role   Role
}

func (i Identity) IsManager() bool {
	return i.Role == RoleManager
}

// Subject is the authorization subject for the caller.
func (i Identity) Subject() string {
	return "user:" + i.UserID.String()
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.UserID == 0 {
		return Identity{}, false
	}
	return id, true
}
