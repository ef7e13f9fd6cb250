// Package authz decides whether a principal may reach a route.
package authz

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/authn"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Requirement is what a route demands of its caller.
type Requirement int

const (
	Public Requirement = iota
	Authenticated
	Admin
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	}
	return "unknown"
}

type Decision int

const (
	Allow Decision = iota
	// Unauthenticated means no principal was bound to the request.
	Unauthenticated
	// Forbidden means a principal is present but lacks the role.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decide applies req to the principal, where ok reports whether one is
// present. Unknown requirements are treated as Admin.
func Decide(p domain.Principal, ok bool, req Requirement) Decision {
	if req == Public {
		return Allow
	}
	if !ok {
		return Unauthenticated
	}
	if req == Authenticated {
		return Allow
	}
	if p.IsAdmin() {
		return Allow
	}
	return Forbidden
}

// Require gates next behind req using the principal bound by authn.
func Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authn.PrincipalFromContext(r.Context())

			switch Decide(p, ok, req) {
			case Allow:
				next.ServeHTTP(w, r)
			case Unauthenticated:
				authsdk.ErrUnauthorized.WriteError(w)
			default:
				slogx.FromContext(r.Context()).Warn("access denied",
					"requirement", req.String(),
					"role", p.Role.String(),
				)
				authsdk.ErrForbidden.WriteError(w)
			}
		})
	}
}
