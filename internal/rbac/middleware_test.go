package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestParseRoles(t *testing.T) {
	roles := ParseRoles([]string{" Sales ", "bogus", "customs", "sales", ""})
	require.Equal(t, []string{"sales", "customs"}, roles)
}

func TestExtractFromGatewayHeader(t *testing.T) {
	m := Middleware{}
	var got []string
	h := m.Extract(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RolesFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RolesHeader, "logistics, admin")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, []string{"logistics", "admin"}, got)
}

func TestRequireAny(t *testing.T) {
	m := Middleware{}
	protected := m.Extract(m.RequireAny(RoleControl)(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RolesHeader, "control")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RolesHeader, "sales")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Admin always passes.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RolesHeader, "admin")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireAnyWithoutRoles(t *testing.T) {
	m := Middleware{}
	protected := m.Extract(m.RequireAny(RoleSales)(okHandler()))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
