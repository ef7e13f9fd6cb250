package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/lockout"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/memory"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testPassword = "Passw0rd1"

var cheapParams = cryptox.Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

type env struct {
	now      time.Time
	accounts store.Accounts
	hasher   *cryptox.Hasher
	tokens   *jwtx.HS256
	machine  *lockout.Machine

	login    *service.LoginService
	register *service.RegistrationService
	account  *service.AccountService
	admin    *service.AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }

	hasher, err := cryptox.NewHasher([]byte("pepper"), cryptox.WithParams(cheapParams))
	require.NoError(t, err)
	tokens, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "gatekeeper", jwtx.WithClock(clock))
	require.NoError(t, err)

	e.accounts = memory.New().Accounts()
	e.hasher = hasher
	e.tokens = tokens
	e.machine = &lockout.Machine{Accounts: e.accounts, Now: clock}

	e.login = &service.LoginService{
		Accounts: e.accounts,
		Lockout:  e.machine,
		Hasher:   hasher,
		Tokens:   tokens,
		Now:      clock,
	}
	e.register = &service.RegistrationService{Accounts: e.accounts, Hasher: hasher, Now: clock}
	e.account = &service.AccountService{Accounts: e.accounts, Hasher: hasher, Now: clock}
	e.admin = &service.AdminService{Accounts: e.accounts, Lockout: e.machine, Now: clock}
	return e
}

func (e *env) signup(t *testing.T, username string) domain.Account {
	t.Helper()
	a, err := e.register.Register(context.Background(), authsdk.SignupRequest{
		Username: username,
		Email:    username + "@x.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	return a
}

func (e *env) mutate(t *testing.T, id int64, fn func(*domain.Account)) {
	t.Helper()
	_, _, err := store.Update(context.Background(), e.accounts, id, func(a *domain.Account) bool {
		fn(a)
		return true
	})
	require.NoError(t, err)
}

func (e *env) reload(t *testing.T, id int64) domain.Account {
	t.Helper()
	a, err := e.accounts.FindByID(context.Background(), id)
	require.NoError(t, err)
	return a
}
