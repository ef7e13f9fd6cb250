// Package storetest is the conformance suite every store driver runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Fixture returns a valid unsaved account.
func Fixture(username string) domain.Account {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Account{
		Username:          username,
		Email:             username + "@x.com",
		PasswordHash:      "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		Enabled:           true,
		Role:              domain.RoleUser,
		SignUpMethod:      domain.SignUpEmail,
		CreatedBy:         "test",
		CredentialsExpiry: domain.Date(now.AddDate(1, 0, 0)),
		AccountExpiry:     domain.Date(now.AddDate(5, 0, 0)),
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAndFind", testInsertAndFind},
		{"RoundTripAllFields", testRoundTrip},
		{"NotFound", testNotFound},
		{"Uniqueness", testUniqueness},
		{"Exists", testExists},
		{"OptimisticConcurrency", testOptimisticConcurrency},
		{"SaveUnknownID", testSaveUnknownID},
		{"Queries", testQueries},
		{"ConcurrentUpdate", testConcurrentUpdate},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func mustSave(t *testing.T, s store.Store, a domain.Account) domain.Account {
	t.Helper()
	saved, err := s.Accounts().Save(context.Background(), a)
	require.NoError(t, err)
	return saved
}

func testInsertAndFind(t *testing.T, s store.Store) {
	ctx := context.Background()

	saved := mustSave(t, s, Fixture("alice"))
	require.NotZero(t, saved.ID)
	require.Equal(t, int64(1), saved.Version)
	require.False(t, saved.CreatedAt.IsZero())

	byID, err := s.Accounts().FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	byName, err := s.Accounts().FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, saved.ID, byName.ID)

	byEmail, err := s.Accounts().FindByEmail(ctx, "ALICE@x.com")
	require.NoError(t, err)
	require.Equal(t, saved.ID, byEmail.ID)

	other := mustSave(t, s, Fixture("bob"))
	require.NotEqual(t, saved.ID, other.ID)
}

func testRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	lockedAt := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	lastLogin := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := Fixture("carol")
	a.Email = "Carol@X.com"
	a.Locked = true
	a.LockedAt = &lockedAt
	a.FailedAttempts = 5
	a.TwoFactorEnabled = true
	a.TwoFactorSecret = "JBSWY3DPEHPK3PXP"
	a.Role = domain.RoleAdmin
	a.LastLoginAt = &lastLogin
	a.Enabled = false

	saved := mustSave(t, s, a)
	got, err := s.Accounts().FindByID(ctx, saved.ID)
	require.NoError(t, err)

	require.Equal(t, "carol@x.com", got.Email, "emails are stored lower-cased")
	require.Equal(t, a.PasswordHash, got.PasswordHash)
	require.False(t, got.Enabled)
	require.True(t, got.Locked)
	require.NotNil(t, got.LockedAt)
	require.True(t, lockedAt.Equal(*got.LockedAt))
	require.Equal(t, 5, got.FailedAttempts)
	require.True(t, got.TwoFactorEnabled)
	require.Equal(t, "JBSWY3DPEHPK3PXP", got.TwoFactorSecret)
	require.Equal(t, domain.RoleAdmin, got.Role)
	require.Equal(t, domain.SignUpEmail, got.SignUpMethod)
	require.Equal(t, "test", got.CreatedBy)
	require.True(t, a.CredentialsExpiry.Equal(got.CredentialsExpiry))
	require.True(t, a.AccountExpiry.Equal(got.AccountExpiry))
	require.NotNil(t, got.LastLoginAt)
	require.True(t, lastLogin.Equal(*got.LastLoginAt))

	// Clearing pointers round-trips as nil.
	got.Locked = false
	got.LockedAt = nil
	got.LastLoginAt = nil
	_, err = s.Accounts().Save(ctx, got)
	require.NoError(t, err)

	again, err := s.Accounts().FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Nil(t, again.LockedAt)
	require.Nil(t, again.LastLoginAt)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Accounts().FindByID(ctx, 4242)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Accounts().FindByUsername(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Accounts().FindByEmail(ctx, "ghost@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUniqueness(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustSave(t, s, Fixture("alice"))

	dupName := Fixture("alice")
	dupName.Email = "other@x.com"
	_, err := s.Accounts().Save(ctx, dupName)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	dupEmail := Fixture("alice2")
	dupEmail.Email = "ALICE@x.com"
	_, err = s.Accounts().Save(ctx, dupEmail)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Updating an existing account onto another's username also collides.
	bob := mustSave(t, s, Fixture("bob"))
	bob.Username = "alice"
	_, err = s.Accounts().Save(ctx, bob)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testExists(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustSave(t, s, Fixture("alice"))

	ok, err := s.Accounts().ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Accounts().ExistsByUsername(ctx, "Alice")
	require.NoError(t, err)
	require.False(t, ok, "usernames are case-sensitive")

	ok, err = s.Accounts().ExistsByEmail(ctx, "Alice@X.com")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Accounts().ExistsByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	require.False(t, ok)
}

func testOptimisticConcurrency(t *testing.T, s store.Store) {
	ctx := context.Background()
	saved := mustSave(t, s, Fixture("alice"))

	first := saved
	first.FailedAttempts = 1
	updated, err := s.Accounts().Save(ctx, first)
	require.NoError(t, err)
	require.Equal(t, saved.Version+1, updated.Version)

	stale := saved
	stale.FailedAttempts = 3
	_, err = s.Accounts().Save(ctx, stale)
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Accounts().FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.FailedAttempts, "stale write must not land")
	require.Equal(t, updated.Version, got.Version)
}

func testSaveUnknownID(t *testing.T, s store.Store) {
	a := Fixture("ghost")
	a.ID = 999
	a.Version = 1
	_, err := s.Accounts().Save(context.Background(), a)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testQueries(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	old := now.AddDate(0, 0, -100)
	recent := now.AddDate(0, 0, -1)

	mk := func(name string, failed int, locked bool, lastLogin *time.Time) domain.Account {
		a := Fixture(name)
		a.FailedAttempts = failed
		a.LastLoginAt = lastLogin
		if locked {
			a.Locked = true
			a.LockedAt = &now
		}
		return mustSave(t, s, a)
	}

	a := mk("a", 0, false, &recent)
	b := mk("b", 3, false, &old)
	c := mk("c", 5, true, nil)
	d := mk("d", 1, false, &recent)

	ids := func(as []domain.Account) []int64 {
		out := make([]int64, len(as))
		for i, x := range as {
			out[i] = x.ID
		}
		return out
	}

	all, err := s.Accounts().List(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, b.ID, c.ID, d.ID}, ids(all))

	locked, err := s.Accounts().AllLocked(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{c.ID}, ids(locked))

	failing, err := s.Accounts().AllWithFailedAttempts(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, c.ID, d.ID}, ids(failing))

	failing, err = s.Accounts().AllWithFailedAttempts(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, c.ID}, ids(failing))

	inactive, err := s.Accounts().AllLastLoginBefore(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, c.ID}, ids(inactive), "never-logged-in accounts count as inactive")

	none, err := s.Accounts().AllWithFailedAttempts(ctx, 50)
	require.NoError(t, err)
	require.Empty(t, none)
}

func testConcurrentUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	saved := mustSave(t, s, Fixture("alice"))

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Update(ctx, s.Accounts(), saved.ID, func(a *domain.Account) bool {
				a.FailedAttempts++
				return true
			})
			if err != nil {
				errs <- fmt.Errorf("update: %w", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Accounts().FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, workers, got.FailedAttempts, "no increment may be lost")
	require.Equal(t, saved.Version+workers, got.Version)
}

func testPing(t *testing.T, s store.Store) {
	require.NoError(t, s.Ping(context.Background()))
}
