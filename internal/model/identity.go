package model

import "time"

// Identity is the authenticated user as issued by the auth backend.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenPair is one (access, refresh) credential set minted by sign-in or renewal.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	AccessTTL    time.Duration `json:"-"`
	RefreshTTL   time.Duration `json:"-"`
}
