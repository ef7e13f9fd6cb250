package authz_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/authn"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/authz"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/stretchr/testify/require"
)

var (
	user  = domain.Principal{ID: 1, Username: "alice", Role: domain.RoleUser}
	admin = domain.Principal{ID: 2, Username: "root", Role: domain.RoleAdmin}
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    domain.Principal
		ok   bool
		req  authz.Requirement
		want authz.Decision
	}{
		{"public anonymous", domain.Principal{}, false, authz.Public, authz.Allow},
		{"public user", user, true, authz.Public, authz.Allow},
		{"authenticated anonymous", domain.Principal{}, false, authz.Authenticated, authz.Unauthenticated},
		{"authenticated user", user, true, authz.Authenticated, authz.Allow},
		{"authenticated admin", admin, true, authz.Authenticated, authz.Allow},
		{"admin anonymous", domain.Principal{}, false, authz.Admin, authz.Unauthenticated},
		{"admin as user", user, true, authz.Admin, authz.Forbidden},
		{"admin as admin", admin, true, authz.Admin, authz.Allow},
		{"unknown requirement", user, true, authz.Requirement(42), authz.Forbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, authz.Decide(tt.p, tt.ok, tt.req))
		})
	}
}

func TestRequire(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name       string
		principal  *domain.Principal
		req        authz.Requirement
		wantStatus int
		wantHeader bool
	}{
		{"anonymous on protected", nil, authz.Authenticated, http.StatusUnauthorized, true},
		{"user on admin", &user, authz.Admin, http.StatusForbidden, false},
		{"admin on admin", &admin, authz.Admin, http.StatusNoContent, false},
		{"anonymous on public", nil, authz.Public, http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				r = r.WithContext(authn.WithPrincipal(r.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			authz.Require(tt.req)(ok).ServeHTTP(rec, r)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantHeader {
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			} else {
				require.Empty(t, rec.Header().Get("WWW-Authenticate"))
			}
			if rec.Code >= 400 {
				require.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	require.Equal(t, "admin", authz.Admin.String())
	require.Equal(t, "forbidden", authz.Forbidden.String())
}
