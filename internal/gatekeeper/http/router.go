package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/authn"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/authz"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeeper/api/gatekeeper" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	pipeline     *authn.Pipeline

	// Limits defaults to the httpx profiles.
	Limits httpx.RateLimitProfiles

	// SecureCookie marks the session cookie Secure.
	SecureCookie bool

	LoginService        *service.LoginService
	RegistrationService *service.RegistrationService
	AccountService      *service.AccountService
	AdminService        *service.AdminService
	ResetService        *service.PasswordResetService
}

func NewRouter(
	pipeline *authn.Pipeline,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		pipeline:     pipeline,
		Limits: httpx.RateLimitProfiles{
			Strict:   httpx.StrictLimit,
			Moderate: httpx.ModerateLimit,
			Lenient:  httpx.LenientLimit,
			Public:   httpx.PublicLimit,
		},
	}

	// Request logger first so the pipeline logs with the request id.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		pipeline.Middleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerPublic()
	r.registerAccount()
	r.registerAdminUsers()
	r.registerAdminSecurity()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatekeeper Authentication Service API
//	@version		0.1.0
//	@description	Session authentication with HS256 JWTs, account lockout after repeated failed logins, and role-gated administration.
//	@description
//	@description				Tokens are accepted from the Authorization header or the HTTP-only jwtToken cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeeper
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) cookieName() string {
	if r.pipeline != nil && r.pipeline.CookieName != "" {
		return r.pipeline.CookieName
	}
	return authn.DefaultCookieName
}

func (r *Router) registerPublic() {
	signin := &SigninHandler{
		LoginService: r.LoginService,
		CookieName:   r.cookieName(),
		SecureCookie: r.SecureCookie,
	}

	// Rate limited by IP + username to slow down credential stuffing
	r.Mux.Handle("POST /api/auth/public/signin",
		httpx.Chain(signin,
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "username"),
		),
	)

	r.Mux.Handle("POST /api/auth/public/signup",
		httpx.Chain(&SignupHandler{RegistrationService: r.RegistrationService},
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	r.Mux.Handle("POST /api/auth/public/forgot-password",
		httpx.Chain(&ForgotPasswordHandler{ResetService: r.ResetService},
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
}

func (r *Router) registerAccount() {
	r.Mux.Handle("GET /api/auth/user",
		httpx.Chain(&UserHandler{AccountService: r.AccountService},
			authz.Require(authz.Authenticated),
			httpx.RateLimitByUser(r.Limits.Lenient),
		),
	)

	// Anonymous callers get an empty username rather than a 401
	r.Mux.Handle("GET /api/auth/username",
		httpx.Chain(UsernameHandler(),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)

	r.Mux.Handle("POST /api/auth/change-password",
		httpx.Chain(&ChangePasswordHandler{AccountService: r.AccountService},
			authz.Require(authz.Authenticated),
			httpx.RateLimitByUser(r.Limits.Strict),
		),
	)

	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(LogoutHandler(r.cookieName(), r.SecureCookie),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
}

func (r *Router) registerAdminUsers() {
	h := &AdminUsersHandler{AdminService: r.AdminService}

	admin := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			authz.Require(authz.Admin),
			httpx.RateLimitByUser(r.Limits.Moderate),
		)
	}

	r.Mux.Handle("GET /api/admin/users", admin(h.HandleList))
	r.Mux.Handle("GET /api/admin/users/{id}", admin(h.HandleGet))
	r.Mux.Handle("PUT /api/admin/users/{id}/role", admin(h.HandleRole))
	r.Mux.Handle("PUT /api/admin/users/{id}/enable", admin(h.HandleEnable))
	r.Mux.Handle("PUT /api/admin/users/{id}/disable", admin(h.HandleDisable))
	r.Mux.Handle("PUT /api/admin/users/{id}/lock", admin(h.HandleLock))
	r.Mux.Handle("PUT /api/admin/users/{id}/unlock", admin(h.HandleUnlock))
	r.Mux.Handle("POST /api/admin/users/{id}/reset-failed-attempts", admin(h.HandleResetFailedAttempts))
}

func (r *Router) registerAdminSecurity() {
	h := &AdminSecurityHandler{AdminService: r.AdminService}

	admin := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			authz.Require(authz.Admin),
			httpx.RateLimitByUser(r.Limits.Moderate),
		)
	}

	r.Mux.Handle("GET /api/admin/security/failed-attempts", admin(h.HandleFailedAttempts))
	r.Mux.Handle("GET /api/admin/security/inactive-users", admin(h.HandleInactive))
	r.Mux.Handle("POST /api/admin/security/unlock-all-accounts", admin(h.HandleUnlockAll))
	r.Mux.Handle("POST /api/admin/security/reset-failed-attempts", admin(h.HandleResetAll))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
}
