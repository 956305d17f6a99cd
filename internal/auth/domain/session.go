package domain

import (
	"context"
	"time"
)

// SessionProvider exposes the session of a single device.
type SessionProvider interface {
	// CurrentSession returns the signed-in identity, or nil when signed out.
	// Failures wrap ErrSessionRead.
	CurrentSession(ctx context.Context) (*Identity, error)
	// OnSessionChange registers fn for sign-in, sign-out and token refresh.
	// fn receives nil on sign-out.
	OnSessionChange(fn func(*Identity)) (unsubscribe func())
}

// SessionStore persists device sessions and announces every change.
type SessionStore interface {
	Get(ctx context.Context, deviceID string) (*Identity, error)
	SignIn(ctx context.Context, deviceID string, identity *Identity) error
	SignOut(ctx context.Context, deviceID string) error
	Extend(ctx context.Context, deviceID string, expiresAt time.Time) (*Identity, error)
}
