// Package authbackend talks to the identity provider that issues and renews the
// opaque bearer tokens pulseboard caches.
package authbackend

import (
	"context"
	"errors"

	"pulseboard/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnavailable        = errors.New("identity provider unavailable")
)

// Session is what the provider returns on sign-in and on refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	Identity     model.Identity
}

type Backend interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (model.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}
