package roles

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/fleetgrid/fleetgrid/testing"
)

func TestRequireDeniesWithProblem(t *testing.T) {
	mw := Middleware{}
	called := false
	h := mw.Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req = req.WithContext(ContextWithRole(req.Context(), RoleViewer))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "forbidden")
}

func TestRequirePassesSufficientRole(t *testing.T) {
	mw := Middleware{}
	called := false
	h := mw.Require(RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/equipment", nil)
	req = req.WithContext(ContextWithRole(req.Context(), RoleAdmin))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, called)
}

func TestRequireDeniesAnonymous(t *testing.T) {
	mw := Middleware{}
	h := mw.Require(RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/equipment", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
