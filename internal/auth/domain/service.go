package domain

import (
	"context"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*Identity, error)
	Logout(ctx context.Context, deviceID string) error
	Extend(ctx context.Context, deviceID string) (*Identity, error)
	ChangePassword(ctx context.Context, userID string, newPassword string) error
}

type CreateUserRequest struct {
	Email     string
	Password  string
	IsDefault bool
}

type LoginRequest struct {
	DeviceID  string
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}
