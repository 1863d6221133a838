package service

import (
	"testing"

	"pulseboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v any) func(model.Snapshot, model.Params) (any, error) {
	return func(model.Snapshot, model.Params) (any, error) { return v, nil }
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Computation
		wantErr bool
	}{
		{name: "ok", entries: []Computation{{Name: "a", Tables: []string{"stock"}, Invoke: constant(1)}}},
		{name: "table free", entries: []Computation{{Name: "a", Tables: []string{}, Invoke: constant(1)}}},
		{name: "undeclared tables", entries: []Computation{{Name: "a", Invoke: constant(1)}}, wantErr: true},
		{name: "no function", entries: []Computation{{Name: "a", Tables: []string{}}}, wantErr: true},
		{name: "no name", entries: []Computation{{Tables: []string{}, Invoke: constant(1)}}, wantErr: true},
		{name: "bad table", entries: []Computation{{Name: "a", Tables: []string{"x-y"}, Invoke: constant(1)}}, wantErr: true},
		{
			name: "duplicate",
			entries: []Computation{
				{Name: "a", Tables: []string{}, Invoke: constant(1)},
				{Name: "a", Tables: []string{}, Invoke: constant(2)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.entries...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_LookupAndNames(t *testing.T) {
	r, err := NewRegistry(
		Computation{Name: "kpi_b", Tables: []string{}, Invoke: constant(1)},
		Computation{Name: "kpi_a", Tables: []string{"stock"}, Invoke: constant(2)},
	)
	require.NoError(t, err)

	c, ok := r.Lookup("kpi_a")
	require.True(t, ok)
	assert.Equal(t, []string{"stock"}, c.Tables)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"kpi_a", "kpi_b"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestMustRegistry_Panics(t *testing.T) {
	assert.Panics(t, func() { MustRegistry(Computation{Name: "a"}) })
}
