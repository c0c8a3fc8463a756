package service

import (
	"context"

	"github.com/iliyamo/faultdesk/internal/model"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// CanWrite reports whether the principal may create or change faults,
// notes and photos. Viewers are read-only.
func (p Principal) CanWrite() bool {
	return p.Role == model.RoleAdmin || p.Role == model.RoleTechnician
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
