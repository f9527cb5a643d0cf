// Package auth provides the bearer-token authentication middleware that
// guards the HTTP surface of cmd/helmgov, grounded on the teacher's
// pkg/auth (context.go's WithPrincipal/GetPrincipal, middleware.go's
// fail-closed JWT bearer middleware).
package auth

import (
	"context"
	"errors"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal identifies the caller of an authenticated request: an
// operator, a service account, or an agent acting on its own behalf.
type Principal struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithPrincipal attaches a Principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// ErrNoPrincipal is returned when no Principal is present in the context.
var ErrNoPrincipal = errors.New("auth: no principal in context")

// FromContext retrieves the Principal the middleware attached.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}
