package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/lockout"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const totpSecret = "JBSWY3DPEHPK3PXP"

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.signup(t, "alice")
	e.mutate(t, alice.ID, func(a *domain.Account) { a.FailedAttempts = 3 })

	res, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.False(t, res.TwoFactorRequired)
	require.NotEmpty(t, res.Token)
	require.True(t, e.now.Add(jwtx.DefaultSessionTTL).Equal(res.ExpiresAt))

	claims, err := e.tokens.Verify(res.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)

	got := e.reload(t, alice.ID)
	require.Zero(t, got.FailedAttempts)
	require.Nil(t, got.LockedAt)
	require.NotNil(t, got.LastLoginAt)
	require.True(t, e.now.Equal(*got.LastLoginAt))
}

func TestLoginRememberMe(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "alice")

	res, err := e.login.Login(context.Background(), service.Credentials{Username: "alice", Password: testPassword, RememberMe: true})
	require.NoError(t, err)
	require.True(t, e.now.Add(jwtx.DefaultRememberTTL).Equal(res.ExpiresAt))
}

func TestLoginUnknownUser(t *testing.T) {
	e := newEnv(t)

	_, err := e.login.Login(context.Background(), service.Credentials{Username: "ghost", Password: testPassword})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestLoginLocksAfterFiveFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.signup(t, "alice")

	for i := 1; i <= 5; i++ {
		_, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: "wrong-password"})
		require.ErrorIs(t, err, service.ErrInvalidCredentials, "attempt %d", i)
		require.Equal(t, i, e.reload(t, alice.ID).FailedAttempts)
	}

	locked := e.reload(t, alice.ID)
	require.True(t, locked.Locked)
	require.NotNil(t, locked.LockedAt)

	_, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword})
	require.ErrorIs(t, err, service.ErrAccountLocked)

	after := e.reload(t, alice.ID)
	require.Equal(t, 5, after.FailedAttempts, "locked accounts are not counted further")
	require.Equal(t, locked.Version, after.Version)

	_, err = e.admin.Unlock(ctx, alice.ID)
	require.NoError(t, err)

	res, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	claims, err := e.tokens.Verify(res.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
}

func TestLoginStatusChecks(t *testing.T) {
	past := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		mutate   func(*domain.Account)
		password string
		want     error
		counted  bool
	}{
		{"disabled", func(a *domain.Account) { a.Enabled = false }, testPassword, service.ErrAccountDisabled, false},
		{"disabled wrong password", func(a *domain.Account) { a.Enabled = false }, "nope-nope", service.ErrAccountDisabled, false},
		{"account expired", func(a *domain.Account) { a.AccountExpiry = past }, testPassword, service.ErrAccountExpired, false},
		{"credentials expired", func(a *domain.Account) { a.CredentialsExpiry = past }, testPassword, service.ErrCredentialsExpired, false},
		{"expired wrong password", func(a *domain.Account) { a.AccountExpiry = past }, "nope-nope", service.ErrInvalidCredentials, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			alice := e.signup(t, "alice")
			e.mutate(t, alice.ID, tt.mutate)

			_, err := e.login.Login(context.Background(), service.Credentials{Username: "alice", Password: tt.password})
			require.ErrorIs(t, err, tt.want)

			want := 0
			if tt.counted {
				want = 1
			}
			require.Equal(t, want, e.reload(t, alice.ID).FailedAttempts)
		})
	}
}

func TestLoginSecondFactor(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.signup(t, "alice")
	e.mutate(t, alice.ID, func(a *domain.Account) {
		a.TwoFactorEnabled = true
		a.TwoFactorSecret = totpSecret
		a.FailedAttempts = 2
	})

	res, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.True(t, res.TwoFactorRequired)
	require.Empty(t, res.Token)
	require.Equal(t, 2, e.reload(t, alice.ID).FailedAttempts, "counters untouched until the code is checked")

	_, err = e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword, Code: "000000"})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	require.Equal(t, 3, e.reload(t, alice.ID).FailedAttempts)

	code, err := totp.GenerateCode(totpSecret, e.now)
	require.NoError(t, err)
	res, err = e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword, Code: code})
	require.NoError(t, err)
	require.False(t, res.TwoFactorRequired)
	require.NotEmpty(t, res.Token)
	require.Zero(t, e.reload(t, alice.ID).FailedAttempts)
}

func TestLoginConcurrentFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.signup(t, "alice")

	const k = 12
	var wg sync.WaitGroup
	for range k {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.login.Login(ctx, service.Credentials{Username: "alice", Password: "wrong-password"})
		}()
	}
	wg.Wait()

	got := e.reload(t, alice.ID)
	require.True(t, got.Locked)
	require.Equal(t, 5, got.FailedAttempts)
}

// hookedHasher runs onVerify before each password check.
type hookedHasher struct {
	service.PasswordHasher
	onVerify func()
}

func (h hookedHasher) Verify(password, encoded string) error {
	h.onVerify()
	return h.PasswordHasher.Verify(password, encoded)
}

func TestLoginStatusChangeDuringPasswordCheck(t *testing.T) {
	tests := []struct {
		name  string
		act   func(e *env, id int64) error
		want  error
		check func(t *testing.T, a domain.Account)
	}{
		{
			name: "admin lock",
			act: func(e *env, id int64) error {
				_, err := e.admin.Lock(context.Background(), id)
				return err
			},
			want: service.ErrAccountLocked,
			check: func(t *testing.T, a domain.Account) {
				require.True(t, a.Locked)
				require.NotNil(t, a.LockedAt)
			},
		},
		{
			name: "admin disable",
			act: func(e *env, id int64) error {
				_, err := e.admin.Disable(context.Background(), id)
				return err
			},
			want: service.ErrAccountDisabled,
			check: func(t *testing.T, a domain.Account) {
				require.False(t, a.Enabled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			alice := e.signup(t, "alice")
			e.login.Hasher = hookedHasher{PasswordHasher: e.hasher, onVerify: func() {
				require.NoError(t, tt.act(e, alice.ID))
			}}

			res, err := e.login.Login(context.Background(), service.Credentials{Username: "alice", Password: testPassword})
			require.ErrorIs(t, err, tt.want)
			require.Empty(t, res.Token)

			got := e.reload(t, alice.ID)
			tt.check(t, got)
			require.Nil(t, got.LastLoginAt)
		})
	}
}

func TestLoginParallelGuessesShareTheBudget(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.signup(t, "alice")

	const guesses = 50
	var verified atomic.Int32
	entered := make(chan struct{}, guesses)
	gate := make(chan struct{})
	e.login.Hasher = hookedHasher{PasswordHasher: e.hasher, onVerify: func() {
		verified.Add(1)
		entered <- struct{}{}
		<-gate
	}}

	var wg sync.WaitGroup
	results := make(chan error, guesses)
	guess := func(password string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: password})
			results <- err
		}()
	}

	// Hold a full budget of wrong guesses inside the password check.
	for range lockout.DefaultMaxFailedAttempts {
		guess("wrong-password")
	}
	for range lockout.DefaultMaxFailedAttempts {
		<-entered
	}

	_, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword})
	require.ErrorIs(t, err, service.ErrAccountLocked, "the correct password gets no check while the budget is spent")

	for range guesses - lockout.DefaultMaxFailedAttempts - 1 {
		guess("wrong-password")
	}
	close(gate)
	wg.Wait()
	close(results)

	var invalid, locked int
	for err := range results {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			invalid++
		case errors.Is(err, service.ErrAccountLocked):
			locked++
		default:
			t.Fatalf("unexpected login error: %v", err)
		}
	}
	require.Equal(t, lockout.DefaultMaxFailedAttempts, invalid)
	require.Equal(t, guesses-lockout.DefaultMaxFailedAttempts-1, locked)
	require.Equal(t, int32(lockout.DefaultMaxFailedAttempts), verified.Load())

	got := e.reload(t, alice.ID)
	require.True(t, got.Locked)
	require.Equal(t, lockout.DefaultMaxFailedAttempts, got.FailedAttempts)

	_, err = e.login.Login(ctx, service.Credentials{Username: "alice", Password: testPassword})
	require.ErrorIs(t, err, service.ErrAccountLocked)
	require.True(t, e.reload(t, alice.ID).Locked)
}

func TestLoginConcurrentGuessesWithOneCorrect(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.signup(t, "alice")

	var verified atomic.Int32
	e.login.Hasher = hookedHasher{PasswordHasher: e.hasher, onVerify: func() { verified.Add(1) }}

	const guesses = 50
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := range guesses {
		password := "wrong-password"
		if i == guesses/2 {
			password = testPassword
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.login.Login(ctx, service.Credentials{Username: "alice", Password: password}); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	// One budget before the correct guess clears the counter and one after.
	require.LessOrEqual(t, verified.Load(), int32(2*lockout.DefaultMaxFailedAttempts))
	got := e.reload(t, alice.ID)
	if succeeded.Load() == 0 {
		require.True(t, got.Locked)
	}
	require.LessOrEqual(t, got.FailedAttempts, lockout.DefaultMaxFailedAttempts)
}

func TestTOTPVerifier(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code, err := totp.GenerateCode(totpSecret, at)
	require.NoError(t, err)

	v := service.TOTPVerifier{Skew: 1}
	require.True(t, v.Verify(totpSecret, code, at))
	require.True(t, v.Verify(totpSecret, " "+code+" ", at.Add(30*time.Second)))
	require.False(t, v.Verify(totpSecret, code, at.Add(5*time.Minute)))
	require.False(t, v.Verify(totpSecret, "", at))
	require.False(t, v.Verify("", code, at))
	require.False(t, service.TOTPVerifier{}.Verify(totpSecret, code, at.Add(30*time.Second)))
}
