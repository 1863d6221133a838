package authbackend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	l := NewLocal(db, "test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, l.Migrate())
	return l
}

func TestLocal_SignInRefreshRotates(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	created, err := l.CreateUser(ctx, "a@b.com", "x")
	require.NoError(t, err)

	s, err := l.SignIn(ctx, "a@b.com", "x")
	require.NoError(t, err)
	assert.Equal(t, created, s.Identity)

	id, err := l.GetUser(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created, id)

	renewed, err := l.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, renewed.RefreshToken)

	_, err = l.Refresh(ctx, s.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken), "a rotated refresh token cannot be replayed")
}

func TestLocal_BadCredentials(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()
	_, err := l.CreateUser(ctx, "a@b.com", "x")
	require.NoError(t, err)

	_, err = l.SignIn(ctx, "a@b.com", "y")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = l.SignIn(ctx, "nobody@b.com", "x")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestLocal_ExpiredTokens(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()
	_, err := l.CreateUser(ctx, "a@b.com", "x")
	require.NoError(t, err)
	s, err := l.SignIn(ctx, "a@b.com", "x")
	require.NoError(t, err)

	l.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	_, err = l.GetUser(ctx, s.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	_, err = l.Refresh(ctx, s.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestLocal_SignOutRevokesRefresh(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()
	_, err := l.CreateUser(ctx, "a@b.com", "x")
	require.NoError(t, err)
	s, err := l.SignIn(ctx, "a@b.com", "x")
	require.NoError(t, err)

	require.NoError(t, l.SignOut(ctx, s.AccessToken))
	_, err = l.Refresh(ctx, s.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestLocal_RefreshLosesRotationRace(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	_, err := l.CreateUser(ctx, "a@b.com", "x")
	require.NoError(t, err)
	s, err := l.SignIn(ctx, "a@b.com", "x")
	require.NoError(t, err)

	// a concurrent renewal revokes the token between our read and our revoke
	raced := false
	require.NoError(t, l.db.Callback().Update().Before("gorm:update").Register("test:concurrent_rotation", func(db *gorm.DB) {
		if raced || db.Statement.Table != "refresh_sessions" {
			return
		}
		raced = true
		db.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE refresh_sessions SET revoked = ? WHERE token = ?", true, s.RefreshToken)
	}))

	_, err = l.Refresh(ctx, s.RefreshToken)
	assert.True(t, raced)
	assert.True(t, errors.Is(err, ErrInvalidToken), "only one renewal may rotate a refresh token")

	var issued int64
	require.NoError(t, l.db.Model(&RefreshSession{}).Where("user_id = ?", s.Identity.ID).Count(&issued).Error)
	assert.Equal(t, int64(1), issued, "the losing renewal must not issue a new refresh session")
}
