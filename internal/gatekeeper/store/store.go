package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by Save when the stored version no longer
	// matches the account's Version.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite,
// postgres) implement this.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}

type Accounts interface {
	FindByID(ctx context.Context, id int64) (domain.Account, error)

	// FindByUsername matches the username exactly.
	FindByUsername(ctx context.Context, username string) (domain.Account, error)

	// FindByEmail matches the lower-cased email.
	FindByEmail(ctx context.Context, email string) (domain.Account, error)

	// Save inserts when a.ID is zero and returns the account with its new ID
	// and Version 1. Otherwise it replaces the row only if the stored version
	// equals a.Version, bumping it, and returns ErrConflict when it does not.
	// Duplicate usernames or emails return ErrAlreadyExists.
	Save(ctx context.Context, a domain.Account) (domain.Account, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// AllLocked returns every locked account ordered by id.
	AllLocked(ctx context.Context) ([]domain.Account, error)

	// AllWithFailedAttempts returns accounts with at least minAttempts failures,
	// ordered by id.
	AllWithFailedAttempts(ctx context.Context, minAttempts int) ([]domain.Account, error)

	// List returns every account ordered by id.
	List(ctx context.Context) ([]domain.Account, error)

	// AllLastLoginBefore returns accounts whose last login is before cutoff,
	// including accounts that never logged in, ordered by id.
	AllLastLoginBefore(ctx context.Context, cutoff time.Time) ([]domain.Account, error)
}
