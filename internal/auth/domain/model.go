// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a local account.
type User struct {
	ID                  snowflake.ID      `gorm:"primaryKey"`
	Email               string            `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash        *string           `gorm:"type:text"`
	IsDefault           bool              `gorm:"column:is_default"`
	LastPasswordChanged *time.Time        `gorm:"column:last_password_changed"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Identity is the authenticated principal attached to a device session. It is
// immutable once handed out; a token refresh produces a new value.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the identity is no longer valid at now.
func (i *Identity) Expired(now time.Time) bool {
	return i == nil || !now.Before(i.ExpiresAt)
}

// Equal compares every field, using time.Time.Equal for timestamps.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.ID == other.ID &&
		i.Email == other.Email &&
		i.SessionID == other.SessionID &&
		i.IssuedAt.Equal(other.IssuedAt) &&
		i.ExpiresAt.Equal(other.ExpiresAt)
}
