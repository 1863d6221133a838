package service

import (
	"context"
	"testing"
	"time"

	"pulseboard/internal/authbackend"
	"pulseboard/internal/model"
	"pulseboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signInBackend() *fakeBackend {
	return &fakeBackend{
		signInFn: func(email, password string) (*authbackend.Session, error) {
			if email != "a@b.com" || password != "x" {
				return nil, authbackend.ErrInvalidCredentials
			}
			return &authbackend.Session{
				AccessToken:  "a1",
				RefreshToken: "r1",
				Identity:     model.Identity{ID: "u1", Email: email},
			}, nil
		},
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	tokens := repository.NewMemoryTokenStore()
	svc := NewAuthService(tokens, signInBackend(), newSpyRowStore(nil), testSessionConfig)

	id, pair, err := svc.Login(ctx, "a@b.com", "x")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{ID: "u1", Email: "a@b.com"}, id)
	assert.Equal(t, "a1", pair.AccessToken)
	assert.Equal(t, "r1", pair.RefreshToken)
	assert.Equal(t, 30*24*time.Hour, pair.RefreshTTL)

	got, ok, err := tokens.Get(ctx, repository.AccessKey("a1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestLogin_Errors(t *testing.T) {
	t.Run("bad password", func(t *testing.T) {
		tokens := repository.NewMemoryTokenStore()
		svc := NewAuthService(tokens, signInBackend(), newSpyRowStore(nil), testSessionConfig)

		_, _, err := svc.Login(context.Background(), "a@b.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Zero(t, tokens.Len())
	})

	t.Run("backend down", func(t *testing.T) {
		svc := NewAuthService(repository.NewMemoryTokenStore(), &fakeBackend{}, newSpyRowStore(nil), testSessionConfig)

		_, _, err := svc.Login(context.Background(), "a@b.com", "x")
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	tokens := repository.NewMemoryTokenStore()
	backend := signInBackend()
	svc := NewAuthService(tokens, backend, newSpyRowStore(nil), testSessionConfig)

	_, _, err := svc.Login(ctx, "a@b.com", "x")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "a1", "r1"))
	assert.Zero(t, tokens.Len())
	assert.Equal(t, 1, backend.signOutCalls)

	err = svc.Logout(ctx, "a1", "r1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMe(t *testing.T) {
	rows := newSpyRowStore(map[string][]model.Row{
		TableKPICatalog:   {{"id": 1, "name": "kpi_nb_commandes"}},
		TableTableCatalog: {{"id": 2}},
		TableChartCatalog: {},
		TableMapCatalog:   {{"id": 4}},
		TableDashWidgets: {
			{"user_id": "u1", "widget": "kpi_nb_commandes"},
			{"user_id": "u2", "widget": "other"},
		},
	})
	svc := NewAuthService(repository.NewMemoryTokenStore(), &fakeBackend{}, rows, testSessionConfig)

	me, err := svc.Me(context.Background(), model.Identity{ID: "u1", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)
	assert.Len(t, me.KPI, 1)
	assert.Len(t, me.Maps, 1)
	require.Len(t, me.Widgets, 1)
	assert.Equal(t, "kpi_nb_commandes", me.Widgets[0]["widget"])
}

func TestMe_RowStoreTimeout(t *testing.T) {
	cfg := testSessionConfig
	cfg.RowTimeout = 50 * time.Millisecond
	svc := NewAuthService(repository.NewMemoryTokenStore(), &fakeBackend{}, hangingRowStore{}, cfg)

	start := time.Now()
	_, err := svc.Me(context.Background(), model.Identity{ID: "u1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
