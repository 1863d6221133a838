package service

import (
	"context"

	"pulseboard/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity injects the verified identity into the context.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom retrieves the verified identity. ok is false on unauthenticated paths.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}
