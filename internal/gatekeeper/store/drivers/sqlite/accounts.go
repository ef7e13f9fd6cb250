package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

const accountColumns = `id, username, email, password_hash, enabled, locked, locked_at,
	failed_attempts, credentials_expiry, account_expiry, two_factor_enabled,
	two_factor_secret, role, sign_up_method, created_by, created_at, updated_at,
	last_login_at, version`

const (
	qSelectAccounts = `SELECT ` + accountColumns + ` FROM accounts`

	qInsertAccount = `INSERT INTO accounts (
	username, email, password_hash, enabled, locked, locked_at, failed_attempts,
	credentials_expiry, account_expiry, two_factor_enabled, two_factor_secret,
	role, sign_up_method, created_by, created_at, updated_at, last_login_at, version
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
RETURNING id`

	qUpdateAccount = `UPDATE accounts SET
	username = ?, email = ?, password_hash = ?, enabled = ?, locked = ?,
	locked_at = ?, failed_attempts = ?, credentials_expiry = ?, account_expiry = ?,
	two_factor_enabled = ?, two_factor_secret = ?, role = ?, sign_up_method = ?,
	created_by = ?, updated_at = ?, last_login_at = ?, version = version + 1
WHERE id = ? AND version = ?
RETURNING version, created_at`
)

type accountsRepo struct {
	db  *sql.DB
	now func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a                       domain.Account
		lockedAt, lastLogin     sql.NullTime
		credsExpiry, acctExpiry sql.NullTime
		secret                  sql.NullString
		role                    string
	)

	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Enabled, &a.Locked, &lockedAt,
		&a.FailedAttempts, &credsExpiry, &acctExpiry, &a.TwoFactorEnabled,
		&secret, &role, &a.SignUpMethod, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		&lastLogin, &a.Version,
	)
	if err != nil {
		return domain.Account{}, err
	}

	a.LockedAt = mapNullTimePtr(lockedAt)
	a.LastLoginAt = mapNullTimePtr(lastLogin)
	a.CredentialsExpiry = mapNullDate(credsExpiry)
	a.AccountExpiry = mapNullDate(acctExpiry)
	a.TwoFactorSecret = secret.String
	a.Role = domain.Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (r *accountsRepo) findOne(ctx context.Context, where string, arg any) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, qSelectAccounts+` WHERE `+where, arg))
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) findMany(ctx context.Context, where string, args ...any) ([]domain.Account, error) {
	q := qSelectAccounts
	if where != "" {
		q += ` WHERE ` + where
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *accountsRepo) FindByID(ctx context.Context, id int64) (domain.Account, error) {
	return r.findOne(ctx, `id = ?`, id)
}

func (r *accountsRepo) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return r.findOne(ctx, `username = ?`, username)
}

func (r *accountsRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.findOne(ctx, `email = ?`, normalizeEmail(email))
}

func (r *accountsRepo) Save(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.Email = normalizeEmail(a.Email)
	now := r.now().UTC()

	if a.ID == 0 {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now

		err := r.db.QueryRowContext(ctx, qInsertAccount,
			a.Username, a.Email, a.PasswordHash, a.Enabled, a.Locked, mapOptionalTime(a.LockedAt),
			a.FailedAttempts, mapDateNull(a.CredentialsExpiry), mapDateNull(a.AccountExpiry),
			a.TwoFactorEnabled, mapStringNull(a.TwoFactorSecret), string(a.Role), a.SignUpMethod,
			a.CreatedBy, a.CreatedAt.UTC(), a.UpdatedAt, mapOptionalTime(a.LastLoginAt),
		).Scan(&a.ID)
		if err != nil {
			return domain.Account{}, mapUnique(err)
		}
		a.Version = 1
		return a, nil
	}

	a.UpdatedAt = now
	err := r.db.QueryRowContext(ctx, qUpdateAccount,
		a.Username, a.Email, a.PasswordHash, a.Enabled, a.Locked,
		mapOptionalTime(a.LockedAt), a.FailedAttempts, mapDateNull(a.CredentialsExpiry), mapDateNull(a.AccountExpiry),
		a.TwoFactorEnabled, mapStringNull(a.TwoFactorSecret), string(a.Role), a.SignUpMethod,
		a.CreatedBy, a.UpdatedAt, mapOptionalTime(a.LastLoginAt),
		a.ID, a.Version,
	).Scan(&a.Version, &a.CreatedAt)
	switch {
	case err == nil:
		a.CreatedAt = a.CreatedAt.UTC()
		return a, nil
	case errors.Is(err, sql.ErrNoRows):
		return domain.Account{}, r.missOrConflict(ctx, a.ID)
	default:
		return domain.Account{}, mapUnique(err)
	}
}

// missOrConflict explains why a versioned update matched no row.
func (r *accountsRepo) missOrConflict(ctx context.Context, id int64) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case err != nil:
		return err
	default:
		return store.ErrConflict
	}
}

func (r *accountsRepo) exists(ctx context.Context, where string, arg any) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE `+where+`)`, arg).Scan(&ok)
	return ok, err
}

func (r *accountsRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `username = ?`, username)
}

func (r *accountsRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `email = ?`, normalizeEmail(email))
}

func (r *accountsRepo) AllLocked(ctx context.Context) ([]domain.Account, error) {
	return r.findMany(ctx, `locked = 1`)
}

func (r *accountsRepo) AllWithFailedAttempts(ctx context.Context, minAttempts int) ([]domain.Account, error) {
	return r.findMany(ctx, `failed_attempts >= ?`, minAttempts)
}

func (r *accountsRepo) List(ctx context.Context) ([]domain.Account, error) {
	return r.findMany(ctx, "")
}

func (r *accountsRepo) AllLastLoginBefore(ctx context.Context, cutoff time.Time) ([]domain.Account, error) {
	return r.findMany(ctx, `last_login_at IS NULL OR last_login_at < ?`, cutoff.UTC())
}
