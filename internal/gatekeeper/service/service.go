// Package service holds the account use cases behind the HTTP handlers.
package service

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrAccountExpired     = errors.New("account expired")
	ErrCredentialsExpired = errors.New("credentials expired")

	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already in use")
	ErrWrongPassword = errors.New("current password does not match")
	ErrInvalidRole   = errors.New("invalid role")
	ErrNotFound      = errors.New("account not found")
)

// ValidationError lists rejected input fields and why.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// PasswordHasher is satisfied by *cryptox.Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
	VerifyDummy(password string)
}

// TokenIssuer is satisfied by *jwtx.HS256.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, time.Time, error)
}

// SecondFactorVerifier checks a one-time code against a stored secret.
type SecondFactorVerifier interface {
	Verify(secret, code string, at time.Time) bool
}

// Account lifetimes applied when credentials are set.
const (
	CredentialsLifetimeYears = 1
	AccountLifetimeYears     = 5
)

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func nowFunc(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
