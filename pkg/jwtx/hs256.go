package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// MinSecretSize is the minimum HMAC secret length in bytes (256 bits).
const MinSecretSize = 32

// HS256 issues and verifies HMAC-SHA256 session tokens. It holds no state
// besides the secret and is safe for concurrent use.
type HS256 struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures an HS256 service.
type Option func(*HS256)

// WithClock overrides time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(h *HS256) { h.now = now }
}

// NewHS256 returns a token service signing with secret. An empty issuer
// disables the iss check.
func NewHS256(secret []byte, issuer string, opts ...Option) (*HS256, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrWeakSecret, len(secret), MinSecretSize)
	}

	h := &HS256{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Issue signs a token for subject valid for ttl. The returned expiry is the
// exp claim as encoded, at one-second resolution.
func (h *HS256) Issue(subject string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("jwtx: empty subject")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("jwtx: non-positive ttl %s", ttl)
	}

	now := h.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    h.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        idx.NewAt(now).String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, claims.Expiry(), nil
}

// Verify parses and validates token. Structural problems come back as
// ErrMalformed, signature problems as ErrBadSignature, non-HS256 headers as
// ErrUnsupported and an exp at or before now as ErrExpired.
func (h *HS256) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(h.now),
		jwt.WithExpirationRequired(),
	}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnsupported
		}
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return claims, nil
}

// BoundTo reports whether token verifies and names subject.
func (h *HS256) BoundTo(token, subject string) bool {
	claims, err := h.Verify(token)
	return err == nil && claims.Subject == subject
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnsupported), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", ErrIssuer, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
