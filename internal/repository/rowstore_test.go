package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Exec("CREATE TABLE stock (id INTEGER PRIMARY KEY, produit_id INTEGER, quantitedisponible REAL)").Error)
	require.NoError(t, db.Exec("INSERT INTO stock (id, produit_id, quantitedisponible) VALUES (1, 10, 5.5), (2, 11, 3)").Error)
	require.NoError(t, db.Exec("CREATE TABLE dash_widgets (id INTEGER PRIMARY KEY, user_id TEXT, widget_key TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO dash_widgets (user_id, widget_key) VALUES ('u1', 'kpi_otif'), ('u2', 'kpi_wip')").Error)
	return db
}

func TestGormRowStore_SelectAll(t *testing.T) {
	store := NewGormRowStore(newTestDB(t))

	rows, err := store.SelectAll(context.Background(), "stock")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 8.5, rows[0].Float("quantitedisponible")+rows[1].Float("quantitedisponible"), 1e-9)
}

func TestGormRowStore_SelectWhere(t *testing.T) {
	store := NewGormRowStore(newTestDB(t))

	rows, err := store.SelectWhere(context.Background(), "dash_widgets", "user_id", "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kpi_otif", rows[0].String("widget_key"))
}

func TestGormRowStore_RejectsInvalidNames(t *testing.T) {
	store := NewGormRowStore(newTestDB(t))

	_, err := store.SelectAll(context.Background(), "stock; DROP TABLE stock")
	assert.True(t, errors.Is(err, ErrInvalidTableName))

	_, err = store.SelectAll(context.Background(), "missing_table")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}
