package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)

// Duplicate-identity conflicts. Both satisfy errors.Is(err, ErrConflict).
var (
	ErrDuplicateEmail    = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrDuplicateUsername = fmt.Errorf("username already taken: %w", ErrConflict)
)
