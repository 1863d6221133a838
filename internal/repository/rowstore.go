package repository

import (
	"context"
	"time"

	"pulseboard/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RowStore is the relational source of truth. It always returns whole tables,
// no filtering is pushed down except the single-column lookup used by /me.
type RowStore interface {
	SelectAll(ctx context.Context, table string) ([]model.Row, error)
	SelectWhere(ctx context.Context, table, column string, value any) ([]model.Row, error)
}

type GormRowStore struct {
	db *gorm.DB
}

func NewGormRowStore(db *gorm.DB) *GormRowStore {
	return &GormRowStore{db: db}
}

func (r *GormRowStore) SelectAll(ctx context.Context, table string) ([]model.Row, error) {
	if !ValidIdentifier(table) {
		return nil, errors.Wrapf(ErrInvalidTableName, "select %q", table)
	}
	var raw []map[string]any
	if err := r.db.WithContext(ctx).Table(table).Find(&raw).Error; err != nil {
		return nil, unavailable("select "+table, err)
	}
	return normalizeRows(raw), nil
}

func (r *GormRowStore) SelectWhere(ctx context.Context, table, column string, value any) ([]model.Row, error) {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return nil, errors.Wrapf(ErrInvalidTableName, "select %q where %q", table, column)
	}
	var raw []map[string]any
	err := r.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Find(&raw).Error
	if err != nil {
		return nil, unavailable("select "+table, err)
	}
	return normalizeRows(raw), nil
}

func (r *GormRowStore) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// normalizeRows converts driver byte slices to strings and timestamps to RFC3339 so
// rows survive a JSON round trip through the table cache unchanged.
func normalizeRows(raw []map[string]any) []model.Row {
	rows := make([]model.Row, 0, len(raw))
	for _, m := range raw {
		row := make(model.Row, len(m))
		for k, v := range m {
			switch t := v.(type) {
			case []byte:
				row[k] = string(t)
			case time.Time:
				row[k] = t.Format(time.RFC3339)
			default:
				row[k] = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}
