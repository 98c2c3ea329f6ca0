package rbac

import (
	"context"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole returns the role for s, or false when s is not a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Principal is the verified identity of an authenticated caller. Holding
// one is the "authenticated" capability.
type Principal struct {
	UserID int64
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Admin is the "authenticated + admin" capability. The only way to obtain
// one is Principal.Admin, so operations that take an Admin cannot be
// reached by a non-admin caller.
type Admin struct {
	p Principal
}

func (a Admin) UserID() int64 { return a.p.UserID }

// Admin upgrades p to the admin capability or fails with Forbidden.
func (p Principal) Admin() (Admin, error) {
	if !p.IsAdmin() {
		return Admin{}, apperr.Forbidden("Admins only")
	}
	return Admin{p: p}, nil
}

type ctxKey struct{}

var ctxKeyPrincipal = ctxKey{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}
