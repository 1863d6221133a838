package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulseboard/internal/authbackend"
	"pulseboard/internal/dto/resp"
	"pulseboard/internal/model"
	"pulseboard/internal/repository"
	"pulseboard/pkg/logger"

	"go.uber.org/zap"
)

// Catalog tables read by Me.
const (
	TableKPICatalog   = "TABLE_KPI"
	TableTableCatalog = "TABLE_TABLEAUX"
	TableChartCatalog = "TABLE_CHART"
	TableMapCatalog   = "TABLE_MAP"
	TableDashWidgets  = "dash_widgets"
)

type AuthService struct {
	tokens  repository.TokenStore
	backend authbackend.Backend
	rows    repository.RowStore
	cfg     SessionConfig
}

func NewAuthService(tokens repository.TokenStore, backend authbackend.Backend, rows repository.RowStore, cfg SessionConfig) *AuthService {
	return &AuthService{
		tokens:  tokens,
		backend: backend,
		rows:    rows,
		cfg:     cfg,
	}
}

// Login signs in against the backend and caches both tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.Identity, *model.TokenPair, error) {
	session, err := s.signIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, authbackend.ErrInvalidCredentials) {
			return model.Identity{}, nil, ErrInvalidCredentials
		}
		logger.Error("sign-in failed", zap.Error(err))
		return model.Identity{}, nil, ErrBackendUnavailable
	}

	pair, err := storeSession(ctx, s.tokens, session, s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL)
	if err != nil {
		return model.Identity{}, nil, err
	}

	logger.Info("user logged in", zap.String("user_id", session.Identity.ID))
	return session.Identity, pair, nil
}

func (s *AuthService) signIn(ctx context.Context, email, password string) (*authbackend.Session, error) {
	if s.cfg.BackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BackendTimeout)
		defer cancel()
	}
	return s.backend.SignIn(ctx, email, password)
}

// Logout deletes the entries of the presented tokens. It fails with
// ErrSessionNotFound when neither token was in the store.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var keys []string
	if accessToken != "" {
		keys = append(keys, repository.AccessKey(accessToken))
	}
	if refreshToken != "" {
		keys = append(keys, repository.RefreshKey(refreshToken))
	}

	deleted, err := s.tokens.Delete(ctx, keys...)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrSessionNotFound
	}

	if accessToken != "" {
		signOutCtx, cancel := context.WithTimeout(ctx, s.backendTimeout())
		defer cancel()
		if err := s.backend.SignOut(signOutCtx, accessToken); err != nil {
			logger.Warn("backend sign-out failed", zap.Error(err))
		}
	}
	return nil
}

func (s *AuthService) backendTimeout() time.Duration {
	if s.cfg.BackendTimeout > 0 {
		return s.cfg.BackendTimeout
	}
	return 5 * time.Second
}

// Me returns the identity with the widget catalogs and the user's saved layout.
func (s *AuthService) Me(ctx context.Context, id model.Identity) (*resp.MeResp, error) {
	out := &resp.MeResp{ID: id.ID, Email: id.Email}

	catalogs := []struct {
		table string
		dst   *[]model.Row
	}{
		{TableKPICatalog, &out.KPI},
		{TableTableCatalog, &out.Table},
		{TableChartCatalog, &out.Chart},
		{TableMapCatalog, &out.Maps},
	}
	for _, c := range catalogs {
		rowCtx, cancel := context.WithTimeout(ctx, rowTimeout(s.cfg.RowTimeout))
		rows, err := s.rows.SelectAll(rowCtx, c.table)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", c.table, err)
		}
		*c.dst = rows
	}

	rowCtx, cancel := context.WithTimeout(ctx, rowTimeout(s.cfg.RowTimeout))
	defer cancel()
	widgets, err := s.rows.SelectWhere(rowCtx, TableDashWidgets, "user_id", id.ID)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", TableDashWidgets, err)
	}
	out.Widgets = widgets
	return out, nil
}
