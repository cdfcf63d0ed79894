// Package auth covers credentials, bearer tokens, token revocation and
// server-side sessions.
package auth

import (
	"context"
	"time"

	"shop/models"
)

// Capabilities is what authorization checks are allowed to ask of an identity.
type Capabilities interface {
	IsAdmin() bool
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	Username string
	Role     string
	// TokenID and ExpiresAt are set for bearer-token requests only.
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
