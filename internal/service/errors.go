package service

import (
	"errors"

	"pulseboard/internal/repository"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrBackendUnavailable = errors.New("identity provider unavailable")
	ErrInvalidTable       = errors.New("invalid table name")
	ErrStoreUnavailable   = repository.ErrStoreUnavailable
)

// Reasons carried by AuthError.
const (
	ReasonMissingRefresh  = "missing refresh token"
	ReasonRefreshExpired  = "refresh expired"
	ReasonRefreshRejected = "refresh rejected"
)

// AuthError is a terminal authentication failure. It matches ErrUnauthenticated.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "unauthenticated: " + e.Reason
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthenticated
}

func unauthenticated(reason string) error {
	return &AuthError{Reason: reason}
}

// ComputationError is a failure contained to one widget slot.
type ComputationError struct {
	Name string
	Err  error
}

func (e *ComputationError) Error() string {
	return e.Err.Error()
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
