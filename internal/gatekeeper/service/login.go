package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/lockout"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

type LoginService struct {
	Accounts     store.Accounts
	Lockout      *lockout.Machine
	Hasher       PasswordHasher
	Tokens       TokenIssuer
	SecondFactor SecondFactorVerifier

	SessionTTL  time.Duration
	RememberTTL time.Duration

	Now func() time.Time
}

type Credentials struct {
	Username   string
	Password   string
	RememberMe bool
	Code       string
}

// LoginResult carries the session token, or TwoFactorRequired with no
// token when the account has a second factor and no code was supplied.
type LoginResult struct {
	Account           domain.Account
	Token             string
	TTL               time.Duration
	ExpiresAt         time.Time
	TwoFactorRequired bool
}

func (s *LoginService) ttl(remember bool) time.Duration {
	if remember {
		if s.RememberTTL > 0 {
			return s.RememberTTL
		}
		return jwtx.DefaultRememberTTL
	}
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return jwtx.DefaultSessionTTL
}

func (s *LoginService) secondFactor() SecondFactorVerifier {
	if s.SecondFactor != nil {
		return s.SecondFactor
	}
	return TOTPVerifier{Skew: 1}
}

// Login authenticates c and issues a session token.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials.
// Every password check is reserved against the lockout budget first, so
// locked and disabled accounts are rejected before the password is checked
// and parallel guesses cannot run past the threshold. The closing write only
// succeeds on a row that is still unlocked and enabled.
func (s *LoginService) Login(ctx context.Context, c Credentials) (LoginResult, error) {
	l := slogx.FromContext(ctx).With(slog.String("username", c.Username))
	now := nowFunc(s.Now)

	account, err := s.Accounts.FindByUsername(ctx, c.Username)
	if errors.Is(err, store.ErrNotFound) {
		s.Hasher.VerifyDummy(c.Password)
		l.Warn("login failed", slog.String("reason", "unknown username"))
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, wrap("find account", err)
	}
	l = l.With(slog.Int64("account_id", account.ID))

	account, _, err = s.Lockout.BeginAttempt(ctx, account.ID)
	if err != nil {
		return LoginResult{}, s.refused(l, "begin attempt", err)
	}

	if err := s.Hasher.Verify(c.Password, account.PasswordHash); err != nil {
		return LoginResult{}, s.fail(ctx, l, account.ID, "wrong password", err)
	}

	if account.AccountExpired(now) {
		l.Warn("login failed", slog.String("reason", "account expired"))
		return LoginResult{}, s.release(ctx, account.ID, ErrAccountExpired)
	}
	if account.CredentialsExpired(now) {
		l.Warn("login failed", slog.String("reason", "credentials expired"))
		return LoginResult{}, s.release(ctx, account.ID, ErrCredentialsExpired)
	}

	if account.TwoFactorEnabled {
		if c.Code == "" {
			l.Info("second factor required")
			if err := s.release(ctx, account.ID, nil); err != nil {
				return LoginResult{}, err
			}
			return LoginResult{Account: account, TwoFactorRequired: true}, nil
		}
		if !s.secondFactor().Verify(account.TwoFactorSecret, c.Code, now) {
			return LoginResult{}, s.fail(ctx, l, account.ID, "wrong second factor", nil)
		}
	}

	account, _, err = s.Lockout.RecordSuccess(ctx, account.ID)
	if err != nil {
		return LoginResult{}, s.refused(l, "record login", err)
	}

	ttl := s.ttl(c.RememberMe)
	token, expiresAt, err := s.Tokens.Issue(account.Username, ttl)
	if err != nil {
		return LoginResult{}, wrap("issue token", err)
	}

	l.Info("login succeeded", slog.Bool("remember_me", c.RememberMe))
	return LoginResult{Account: account, Token: token, TTL: ttl, ExpiresAt: expiresAt}, nil
}

// refused maps a lockout refusal to the login error for it.
func (s *LoginService) refused(l *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, lockout.ErrLocked):
		l.Warn("login failed", slog.String("reason", "account locked"))
		return ErrAccountLocked
	case errors.Is(err, lockout.ErrDisabled):
		l.Warn("login failed", slog.String("reason", "account disabled"))
		return ErrAccountDisabled
	default:
		return wrap(op, err)
	}
}

// release hands the reserved attempt back and returns result.
func (s *LoginService) release(ctx context.Context, id int64, result error) error {
	if _, _, err := s.Lockout.ReleaseAttempt(ctx, id); err != nil {
		return wrap("release attempt", err)
	}
	return result
}

// fail settles the reserved attempt as a failure and returns
// ErrInvalidCredentials. The lock edge is reported by the lockout machine.
func (s *LoginService) fail(ctx context.Context, l *slog.Logger, id int64, reason string, cause error) error {
	attrs := []any{slog.String("reason", reason)}
	if cause != nil && !errors.Is(cause, cryptox.ErrMismatch) {
		attrs = append(attrs, slog.Any("error", cause))
	}
	l.Warn("login failed", attrs...)

	if _, _, err := s.Lockout.FailAttempt(ctx, id); err != nil {
		return wrap("record failure", err)
	}
	return ErrInvalidCredentials
}
