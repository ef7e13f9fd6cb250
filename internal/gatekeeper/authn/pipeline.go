// Package authn binds an authenticated principal to inbound requests.
//
// A request whose token is missing, invalid or belongs to an account that can
// no longer authenticate continues anonymously. Route protection is left to
// the authz gate.
package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// DefaultCookieName is the HTTP-only cookie that carries the session token.
const DefaultCookieName = "jwtToken"

// DefaultBypassPrefixes are served without looking at credentials.
var DefaultBypassPrefixes = []string{
	"/api/auth/public/",
	"/livez",
	"/readyz",
	"/swagger/",
	"/images/",
	"/error",
}

// TokenVerifier is the part of jwtx.HS256 the pipeline needs.
type TokenVerifier interface {
	Verify(token string) (jwtx.Claims, error)
	BoundTo(token, subject string) bool
}

type Pipeline struct {
	Tokens   TokenVerifier
	Accounts store.Accounts

	// CookieName defaults to DefaultCookieName.
	CookieName string
	// BypassPrefixes defaults to DefaultBypassPrefixes. Set it to an empty,
	// non-nil slice to authenticate every path.
	BypassPrefixes []string

	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) cookieName() string {
	if p.CookieName != "" {
		return p.CookieName
	}
	return DefaultCookieName
}

func (p *Pipeline) bypassed(path string) bool {
	prefixes := p.BypassPrefixes
	if prefixes == nil {
		prefixes = DefaultBypassPrefixes
	}
	for _, prefix := range prefixes {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// matchesPrefix treats a prefix ending in "/" as a directory. Any other
// prefix matches itself exactly or as a parent path, so "/livez" covers
// "/livez/" but not "/livezfoo".
func matchesPrefix(path, prefix string) bool {
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Middleware authenticates each request and binds the principal into its
// context. It never rejects a request.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, ok := p.Authenticate(r.Context(), TokenFromRequest(r, p.cookieName()))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithPrincipal(r.Context(), principal)
		ctx = context.WithValue(ctx, httpx.CtxKeyUserID, strconv.FormatInt(principal.ID, 10))
		ctx = slogx.WithContext(ctx, slogx.FromContext(ctx).With(slog.Int64("account_id", principal.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves token to a principal. The second result is false when
// the request should be treated as anonymous.
func (p *Pipeline) Authenticate(ctx context.Context, token string) (domain.Principal, bool) {
	if token == "" {
		return domain.Principal{}, false
	}
	l := slogx.FromContext(ctx)

	claims, err := p.Tokens.Verify(token)
	if err != nil {
		reason := failureReason(err)
		if errors.Is(err, jwtx.ErrExpired) {
			l.Debug("session token rejected", slog.String("reason", reason))
		} else {
			l.Warn("session token rejected", slog.String("reason", reason))
		}
		return domain.Principal{}, false
	}

	account, err := p.Accounts.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("session token subject not found")
		} else {
			l.Error("account lookup failed", slog.Any("error", err))
		}
		return domain.Principal{}, false
	}

	if !p.Tokens.BoundTo(token, account.Username) {
		l.Warn("session token not bound to account", slog.Int64("account_id", account.ID))
		return domain.Principal{}, false
	}

	if !account.CanAuthenticate(p.now()) {
		l.Info("session for unusable account ignored",
			slog.Int64("account_id", account.ID),
			slog.Bool("enabled", account.Enabled),
			slog.Bool("locked", account.Locked),
		)
		return domain.Principal{}, false
	}

	return account.Principal(), true
}

// TokenFromRequest returns the bearer token from the Authorization header, or
// failing that from the named cookie. Query strings and bodies are never read.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, raw, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			if t := strings.TrimSpace(raw); t != "" {
				return t
			}
		}
	}

	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return "expired"
	case errors.Is(err, jwtx.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, jwtx.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, jwtx.ErrIssuer):
		return "issuer"
	case errors.Is(err, jwtx.ErrNotYetValid):
		return "not_yet_valid"
	default:
		return "malformed"
	}
}
