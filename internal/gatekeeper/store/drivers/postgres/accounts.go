package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
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
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1)
RETURNING id`

	qUpdateAccount = `UPDATE accounts SET
	username = $1, email = $2, password_hash = $3, enabled = $4, locked = $5,
	locked_at = $6, failed_attempts = $7, credentials_expiry = $8, account_expiry = $9,
	two_factor_enabled = $10, two_factor_secret = $11, role = $12, sign_up_method = $13,
	created_by = $14, updated_at = $15, last_login_at = $16, version = version + 1
WHERE id = $17 AND version = $18
RETURNING version, created_at`
)

type accountsRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a                       domain.Account
		lockedAt, lastLogin     *time.Time
		credsExpiry, acctExpiry *time.Time
		secret                  *string
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

	a.LockedAt = utcPtr(lockedAt)
	a.LastLoginAt = utcPtr(lastLogin)
	a.CredentialsExpiry = fromDatePtr(credsExpiry)
	a.AccountExpiry = fromDatePtr(acctExpiry)
	if secret != nil {
		a.TwoFactorSecret = *secret
	}
	a.Role = domain.Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (r *accountsRepo) findOne(ctx context.Context, where string, arg any) (domain.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, qSelectAccounts+` WHERE `+where, arg))
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
	rows, err := r.pool.Query(ctx, q+` ORDER BY id`, args...)
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
	return r.findOne(ctx, `id = $1`, id)
}

func (r *accountsRepo) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return r.findOne(ctx, `username = $1`, username)
}

func (r *accountsRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.findOne(ctx, `email = $1`, normalizeEmail(email))
}

func (r *accountsRepo) Save(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.Email = normalizeEmail(a.Email)
	now := r.now().UTC()

	if a.ID == 0 {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.CreatedAt = a.CreatedAt.UTC()
		a.UpdatedAt = now

		err := r.pool.QueryRow(ctx, qInsertAccount,
			a.Username, a.Email, a.PasswordHash, a.Enabled, a.Locked, utcPtr(a.LockedAt),
			a.FailedAttempts, datePtr(a.CredentialsExpiry), datePtr(a.AccountExpiry),
			a.TwoFactorEnabled, stringPtr(a.TwoFactorSecret), string(a.Role), a.SignUpMethod,
			a.CreatedBy, a.CreatedAt, a.UpdatedAt, utcPtr(a.LastLoginAt),
		).Scan(&a.ID)
		if err != nil {
			return domain.Account{}, mapUnique(err)
		}
		a.Version = 1
		return a, nil
	}

	a.UpdatedAt = now
	err := r.pool.QueryRow(ctx, qUpdateAccount,
		a.Username, a.Email, a.PasswordHash, a.Enabled, a.Locked,
		utcPtr(a.LockedAt), a.FailedAttempts, datePtr(a.CredentialsExpiry), datePtr(a.AccountExpiry),
		a.TwoFactorEnabled, stringPtr(a.TwoFactorSecret), string(a.Role), a.SignUpMethod,
		a.CreatedBy, a.UpdatedAt, utcPtr(a.LastLoginAt),
		a.ID, a.Version,
	).Scan(&a.Version, &a.CreatedAt)
	switch {
	case err == nil:
		a.CreatedAt = a.CreatedAt.UTC()
		return a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.Account{}, r.missOrConflict(ctx, a.ID)
	default:
		return domain.Account{}, mapUnique(err)
	}
}

func (r *accountsRepo) missOrConflict(ctx context.Context, id int64) error {
	ok, err := r.exists(ctx, `id = $1`, id)
	switch {
	case err != nil:
		return err
	case !ok:
		return store.ErrNotFound
	default:
		return store.ErrConflict
	}
}

func (r *accountsRepo) exists(ctx context.Context, where string, arg any) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE `+where+`)`, arg).Scan(&ok)
	return ok, err
}

func (r *accountsRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `username = $1`, username)
}

func (r *accountsRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `email = $1`, normalizeEmail(email))
}

func (r *accountsRepo) AllLocked(ctx context.Context) ([]domain.Account, error) {
	return r.findMany(ctx, `locked`)
}

func (r *accountsRepo) AllWithFailedAttempts(ctx context.Context, minAttempts int) ([]domain.Account, error) {
	return r.findMany(ctx, `failed_attempts >= $1`, minAttempts)
}

func (r *accountsRepo) List(ctx context.Context) ([]domain.Account, error) {
	return r.findMany(ctx, "")
}

func (r *accountsRepo) AllLastLoginBefore(ctx context.Context, cutoff time.Time) ([]domain.Account, error) {
	return r.findMany(ctx, `last_login_at IS NULL OR last_login_at < $1`, cutoff.UTC())
}
