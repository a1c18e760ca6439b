// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pitchdeck/internal/identity"
)

// User is an account. Role is fixed at registration.
type User struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email        string        `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	DisplayName  string        `gorm:"type:text;not null;uniqueIndex:ux_users_display_name" json:"display_name"`
	Role         identity.Role `gorm:"type:text;not null" json:"role"`
	PasswordHash string        `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
}

func (User) TableName() string { return "users" }

func (u User) Identity() identity.Identity {
	return identity.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// Session is a persisted login. Only the token hash is stored.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null"`
}

func (Session) TableName() string { return "sessions" }
