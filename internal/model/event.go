package model

import (
	"encoding/json"
	"strings"

	"pulseboard/pkg/constraints"
)

// Change event types emitted by the upstream database.
const (
	EventInsert = constraints.EventInsert
	EventUpdate = constraints.EventUpdate
	EventDelete = constraints.EventDelete
)

// ChangeEvent is one row-level change notification for a table.
type ChangeEvent struct {
	Table     string          `json:"table"`
	Type      string          `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

func (e ChangeEvent) NormalizedType() string {
	return strings.ToUpper(strings.TrimSpace(e.Type))
}

// HasRecord reports whether the event carries a non-null row payload.
func (e ChangeEvent) HasRecord() bool {
	return nonNull(e.Record) || nonNull(e.OldRecord)
}

func nonNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != "{}"
}
