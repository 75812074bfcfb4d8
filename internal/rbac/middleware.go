package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-trade/meridian/internal/shared"
)

// RolesHeader is the gateway fallback: when no session is present, a trusted
// upstream proxy may supply the caller's roles as a comma-separated list.
// Authentication itself happens upstream; this service only consumes the
// resulting role set.
const RolesHeader = "X-Meridian-Roles"

type rolesContextKey struct{}

// ContextWithRoles stores a resolved role set on the context.
func ContextWithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesContextKey{}, roles)
}

// RolesFromContext returns the role set resolved by the Extract middleware.
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesContextKey{}).([]string)
	return roles
}

// Middleware resolves and enforces department roles for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Extract resolves the caller's roles from the session, falling back to the
// gateway header, and stores them on the request context. It never refuses a
// request itself.
func (m Middleware) Extract(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roles := m.resolve(r)
		next.ServeHTTP(w, r.WithContext(ContextWithRoles(r.Context(), roles)))
	})
}

// RequireAny refuses the request unless the caller holds at least one of the
// given roles. Admin always passes.
func (m Middleware) RequireAny(roles ...Role) func(http.Handler) http.Handler {
	required := make(map[Role]struct{}, len(roles)+1)
	for _, role := range roles {
		required[role] = struct{}{}
	}
	required[RoleAdmin] = struct{}{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, held := range RolesFromContext(r.Context()) {
				if _, ok := required[Role(held)]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) resolve(r *http.Request) []string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if roles := ParseRoles(sess.Roles()); len(roles) > 0 {
			return roles
		}
	}
	header := strings.TrimSpace(r.Header.Get(RolesHeader))
	if header == "" {
		return nil
	}
	roles := ParseRoles(strings.Split(header, ","))
	if len(roles) == 0 && m.Logger != nil {
		m.Logger.Warn("no known roles in gateway header", slog.String("header", header))
	}
	return roles
}
