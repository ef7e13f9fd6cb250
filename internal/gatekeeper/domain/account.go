package domain

import "time"

// Sign-up methods recorded on accounts.
const (
	SignUpEmail  = "email"
	SignUpSystem = "system"
)

type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string // argon2id PHC string

	Enabled        bool
	Locked         bool
	LockedAt       *time.Time
	FailedAttempts int

	// Calendar dates at UTC midnight. Zero means never.
	CredentialsExpiry time.Time
	AccountExpiry     time.Time

	TwoFactorEnabled bool
	TwoFactorSecret  string // base32 TOTP secret

	Role         Role
	SignUpMethod string
	CreatedBy    string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time

	// Version is maintained by the store for compare-and-swap updates.
	Version int64
}

// Date truncates t to its UTC calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// passed reports whether the calendar day after date has begun at now.
func passed(date, now time.Time) bool {
	if date.IsZero() {
		return false
	}
	return !now.Before(Date(date).AddDate(0, 0, 1))
}

func (a Account) AccountExpired(now time.Time) bool { return passed(a.AccountExpiry, now) }

func (a Account) CredentialsExpired(now time.Time) bool { return passed(a.CredentialsExpiry, now) }

// CanAuthenticate reports whether the account may hold a session at now.
func (a Account) CanAuthenticate(now time.Time) bool {
	return a.Enabled && !a.Locked && !a.AccountExpired(now) && !a.CredentialsExpired(now)
}

// Principal returns the identity bound to requests for this account.
func (a Account) Principal() Principal {
	return Principal{ID: a.ID, Username: a.Username, Role: a.Role}
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID       int64
	Username string
	Role     Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
