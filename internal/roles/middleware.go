package roles

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fleetgrid/fleetgrid/internal/platform/httpx"
	"github.com/fleetgrid/fleetgrid/internal/shared"
)

type roleContextKey struct{}

// ContextWithRole stores the resolved role in context.
func ContextWithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// FromContext extracts the resolved role, RoleNone when absent.
func FromContext(ctx context.Context) Role {
	role, _ := ctx.Value(roleContextKey{}).(Role)
	return role
}

// Middleware wires role resolution and checks for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Resolve attaches the effective role to the request context. Mount once
// above all role-guarded routes.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		role := m.Resolver.Resolve(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ContextWithRole(r.Context(), role)))
	})
}

// Require ensures the current user holds at least the weakest of the
// acceptable roles.
func (m Middleware) Require(acceptable ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			effective := FromContext(r.Context())
			if Allow(effective, acceptable...) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Info("roles: access denied", slog.String("role", string(effective)), slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrForbidden.Error())
		})
	}
}
