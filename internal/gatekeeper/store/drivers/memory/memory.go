// Package memory is an in-process Store used by tests and by the
// "memory" database driver. Nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]domain.Account
	now      func() time.Time
}

// New returns an empty store.
func New() store.Store {
	return &memStore{
		nextID:   1,
		accounts: make(map[int64]domain.Account),
		now:      time.Now,
	}
}

func (s *memStore) Accounts() store.Accounts { return s }

func (s *memStore) ApplyMigrations() error { return nil }

func (s *memStore) Close() error { return nil }

func (s *memStore) Ping(ctx context.Context) error { return ctx.Err() }

// clone detaches the pointer fields so callers never share state with the map.
func clone(a domain.Account) domain.Account {
	if a.LockedAt != nil {
		t := *a.LockedAt
		a.LockedAt = &t
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		a.LastLoginAt = &t
	}
	return a
}

func (s *memStore) FindByID(ctx context.Context, id int64) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return clone(a), nil
}

func (s *memStore) findBy(match func(domain.Account) bool) (domain.Account, bool) {
	for _, a := range s.accounts {
		if match(a) {
			return clone(a), true
		}
	}
	return domain.Account{}, false
}

func (s *memStore) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.findBy(func(a domain.Account) bool { return a.Username == username })
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	a, ok := s.findBy(func(a domain.Account) bool { return a.Email == email })
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *memStore) Save(ctx context.Context, a domain.Account) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a.Email = strings.ToLower(a.Email)
	for id, other := range s.accounts {
		if id != a.ID && (other.Username == a.Username || other.Email == a.Email) {
			return domain.Account{}, store.ErrAlreadyExists
		}
	}

	now := s.now().UTC()
	if a.ID == 0 {
		a.ID = s.nextID
		s.nextID++
		a.Version = 1
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		s.accounts[a.ID] = clone(a)
		return clone(a), nil
	}

	current, ok := s.accounts[a.ID]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	if current.Version != a.Version {
		return domain.Account{}, store.ErrConflict
	}

	a.Version++
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = now
	s.accounts[a.ID] = clone(a)
	return clone(a), nil
}

func (s *memStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.FindByUsername(ctx, username)
	return err == nil, nil
}

func (s *memStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	return err == nil, nil
}

// filter returns matching accounts ordered by id.
func (s *memStore) filter(match func(domain.Account) bool) []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Account, 0)
	for _, a := range s.accounts {
		if match(a) {
			out = append(out, clone(a))
		}
	}
	slices.SortFunc(out, func(a, b domain.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *memStore) AllLocked(ctx context.Context) ([]domain.Account, error) {
	return s.filter(func(a domain.Account) bool { return a.Locked }), nil
}

func (s *memStore) AllWithFailedAttempts(ctx context.Context, minAttempts int) ([]domain.Account, error) {
	return s.filter(func(a domain.Account) bool { return a.FailedAttempts >= minAttempts }), nil
}

func (s *memStore) List(ctx context.Context) ([]domain.Account, error) {
	return s.filter(func(domain.Account) bool { return true }), nil
}

func (s *memStore) AllLastLoginBefore(ctx context.Context, cutoff time.Time) ([]domain.Account, error) {
	return s.filter(func(a domain.Account) bool {
		return a.LastLoginAt == nil || a.LastLoginAt.Before(cutoff)
	}), nil
}
