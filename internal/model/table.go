package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one record of a table as returned by the row store.
type Row map[string]any

// Snapshot maps table name to its rows. A snapshot is built once per dispatch and
// shared read-only by every computation of that batch.
type Snapshot map[string][]Row

// Rows returns the rows of a table, or nil when the table was not loaded.
func (s Snapshot) Rows(table string) []Row {
	return s[table]
}

// IndexBy groups rows of a table by the string form of one field.
func (s Snapshot) IndexBy(table, field string) map[string]Row {
	idx := make(map[string]Row, len(s[table]))
	for _, r := range s[table] {
		if k := r.String(field); k != "" {
			idx[k] = r
		}
	}
	return idx
}

func (r Row) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

func (r Row) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// Float reads a numeric field, accepting JSON numbers, integers and numeric strings.
// Missing or unparsable values read as 0.
func (r Row) Float(field string) float64 {
	v, ok := r[field]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

// Time reads a date or timestamp field. ok is false when the value is absent or unparsable.
func (r Row) Time(field string) (time.Time, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return time.Time{}, false
	}
	if t, isTime := v.(time.Time); isTime {
		return t, true
	}
	return ParseTime(r.String(field))
}

// Date is Time truncated to the calendar day in UTC.
func (r Row) Date(field string) (time.Time, bool) {
	t, ok := r.Time(field)
	if !ok {
		return time.Time{}, false
	}
	return TruncateDay(t), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
}

// ParseTime accepts the date formats seen in upstream tables.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
