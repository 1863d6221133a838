package service

import (
	"context"
	"errors"
	"time"

	"pulseboard/internal/authbackend"
	"pulseboard/internal/metrics"
	"pulseboard/internal/model"
	"pulseboard/internal/repository"
	"pulseboard/pkg/logger"

	"go.uber.org/zap"
)

type SessionConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BackendTimeout  time.Duration
	// RevokeSuperseded deletes refresh:<old> once a renewal has been stored.
	RevokeSuperseded bool
	// RowTimeout bounds each catalog read of Me.
	RowTimeout time.Duration
}

// Verification is the outcome of a successful Verify. Renewed is set only when
// the access token had to be re-minted; the transport must then hand the new
// pair back to the client.
type Verification struct {
	Identity model.Identity
	Renewed  *model.TokenPair
}

// SessionVerifier resolves an identity from an access token, renewing the pair
// through the auth backend when the access token is gone from the store.
type SessionVerifier struct {
	tokens   repository.TokenStore
	backend  authbackend.Backend
	cfg      SessionConfig
	observer metrics.SessionObserver
}

func NewSessionVerifier(tokens repository.TokenStore, backend authbackend.Backend, cfg SessionConfig, observer metrics.SessionObserver) *SessionVerifier {
	if observer == nil {
		observer = metrics.Nop()
	}
	return &SessionVerifier{
		tokens:   tokens,
		backend:  backend,
		cfg:      cfg,
		observer: observer,
	}
}

func (v *SessionVerifier) Verify(ctx context.Context, accessToken, refreshToken string) (*Verification, error) {
	if accessToken != "" {
		id, ok, err := v.tokens.Get(ctx, repository.AccessKey(accessToken))
		if err != nil {
			v.observer.SessionResolved("error")
			return nil, err
		}
		if ok {
			v.observer.SessionResolved("cached")
			return &Verification{Identity: id}, nil
		}
	}

	if refreshToken == "" {
		v.observer.SessionResolved("rejected")
		return nil, unauthenticated(ReasonMissingRefresh)
	}

	// local check only, the backend is the authority on the renewal itself
	exists, err := v.tokens.Exists(ctx, repository.RefreshKey(refreshToken))
	if err != nil {
		v.observer.SessionResolved("error")
		return nil, err
	}
	if !exists {
		v.observer.SessionResolved("rejected")
		return nil, unauthenticated(ReasonRefreshExpired)
	}

	session, err := v.refresh(ctx, refreshToken)
	if err != nil {
		logger.Warn("token refresh rejected by backend", zap.Error(err))
		v.observer.SessionResolved("rejected")
		return nil, unauthenticated(ReasonRefreshRejected)
	}

	pair, err := storeSession(ctx, v.tokens, session, v.cfg.AccessTokenTTL, v.cfg.RefreshTokenTTL)
	if err != nil {
		v.observer.SessionResolved("error")
		return nil, err
	}

	if v.cfg.RevokeSuperseded && session.RefreshToken != refreshToken {
		if _, err := v.tokens.Delete(ctx, repository.RefreshKey(refreshToken)); err != nil {
			logger.Warn("failed to revoke superseded refresh token", zap.Error(err))
		}
	}

	logger.Info("session renewed", zap.String("user_id", session.Identity.ID))
	v.observer.SessionResolved("renewed")
	return &Verification{Identity: session.Identity, Renewed: pair}, nil
}

func (v *SessionVerifier) refresh(ctx context.Context, refreshToken string) (*authbackend.Session, error) {
	if v.cfg.BackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.BackendTimeout)
		defer cancel()
	}
	session, err := v.backend.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session == nil || session.AccessToken == "" || session.RefreshToken == "" {
		return nil, errors.New("backend returned an empty session")
	}
	return session, nil
}

// storeSession writes both token entries with their own TTLs.
func storeSession(ctx context.Context, tokens repository.TokenStore, s *authbackend.Session, accessTTL, refreshTTL time.Duration) (*model.TokenPair, error) {
	if err := tokens.Put(ctx, repository.AccessKey(s.AccessToken), s.Identity, accessTTL); err != nil {
		return nil, err
	}
	if err := tokens.Put(ctx, repository.RefreshKey(s.RefreshToken), s.Identity, refreshTTL); err != nil {
		return nil, err
	}
	return &model.TokenPair{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		AccessTTL:    accessTTL,
		RefreshTTL:   refreshTTL,
	}, nil
}
