package domain

import "errors"

var (
	ErrNotFound       = errors.New("profile_not_found")
	ErrInvalidProfile = errors.New("invalid_profile")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrInvalidHandle  = errors.New("invalid_handle")
	ErrHandleTaken    = errors.New("handle_taken")
	ErrAlreadyExists  = errors.New("profile_exists")

	// ErrProfileLookup wraps storage failures while reading a profile. A
	// missing profile is not an error.
	ErrProfileLookup = errors.New("profile lookup failed")
)
