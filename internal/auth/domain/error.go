package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrWeakPassword       = errors.New("password too short")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidDevice      = errors.New("invalid device")

	// ErrSessionRead marks a transport or credential failure while reading the
	// current session. It is distinct from "no session", which is not an error.
	ErrSessionRead = errors.New("session read failed")
)
