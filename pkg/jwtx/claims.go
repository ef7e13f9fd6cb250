package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default session lifetimes. Callers pick one per login.
const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultRememberTTL = 7 * 24 * time.Hour
)

// Claims are the session token claims: sub is the username.
type Claims struct {
	jwt.RegisteredClaims
}

// Expiry returns the exp claim, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Issued returns the iat claim, or the zero time when absent.
func (c Claims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
