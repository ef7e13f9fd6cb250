package jwtx_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T) (*jwtx.HS256, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := jwtx.NewHS256(testSecret, "gatekeeper", jwtx.WithClock(c.Now))
	require.NoError(t, err)
	return svc, c
}

func TestNewHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewHS256([]byte("short"), "gatekeeper")
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestIssueAndVerify(t *testing.T) {
	svc, c := newService(t)

	token, exp, err := svc.Issue("alice", time.Hour)
	require.NoError(t, err)
	require.Equal(t, c.Now().Add(time.Hour), exp)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, "gatekeeper", claims.Issuer)
	require.Equal(t, c.Now(), claims.Issued())
	require.Equal(t, exp, claims.Expiry())
	require.NotEmpty(t, claims.ID)
}

func TestIssueRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)

	_, _, err := svc.Issue("", time.Hour)
	require.Error(t, err)
	_, _, err = svc.Issue("alice", 0)
	require.Error(t, err)
}

func TestIssueUniqueIDs(t *testing.T) {
	svc, _ := newService(t)

	a, _, err := svc.Issue("alice", time.Hour)
	require.NoError(t, err)
	b, _, err := svc.Issue("alice", time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestExpiryBoundary(t *testing.T) {
	for _, ttl := range []time.Duration{time.Second, 24 * time.Hour, 7 * 24 * time.Hour} {
		t.Run(ttl.String(), func(t *testing.T) {
			svc, c := newService(t)
			token, _, err := svc.Issue("alice", ttl)
			require.NoError(t, err)

			c.Advance(ttl - 500*time.Millisecond)
			_, err = svc.Verify(token)
			require.NoError(t, err, "valid just before exp")

			c.Advance(500 * time.Millisecond)
			_, err = svc.Verify(token)
			require.ErrorIs(t, err, jwtx.ErrExpired, "expired at exp")

			c.Advance(time.Second)
			_, err = svc.Verify(token)
			require.ErrorIs(t, err, jwtx.ErrExpired)
			require.NotErrorIs(t, err, jwtx.ErrMalformed)
		})
	}
}

func TestVerifyFailures(t *testing.T) {
	svc, c := newService(t)

	good, _, err := svc.Issue("alice", time.Hour)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{
		Issuer:    "gatekeeper",
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(c.Now().Add(time.Hour)),
	}

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: jwtx.ErrMalformed},
		{name: "garbage", token: "not.a.token", want: jwtx.ErrMalformed},
		{name: "two segments", token: parts[0] + "." + parts[1], want: jwtx.ErrMalformed},
		{name: "tampered signature", token: tampered, want: jwtx.ErrBadSignature},
		{name: "other secret", token: sign(jwt.SigningMethodHS256, []byte("ffffffffffffffffffffffffffffffff"), valid), want: jwtx.ErrBadSignature},
		{name: "alg none", token: sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), want: jwtx.ErrUnsupported},
		{name: "hs512", token: sign(jwt.SigningMethodHS512, testSecret, valid), want: jwtx.ErrUnsupported},
		{name: "missing exp", token: sign(jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Issuer: "gatekeeper", Subject: "alice"}), want: jwtx.ErrMalformed},
		{name: "missing subject", token: sign(jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Issuer: "gatekeeper", ExpiresAt: valid.ExpiresAt}), want: jwtx.ErrMalformed},
		{name: "wrong issuer", token: sign(jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Issuer: "other", Subject: "alice", ExpiresAt: valid.ExpiresAt}), want: jwtx.ErrIssuer},
		{name: "not yet valid", token: sign(jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{Issuer: "gatekeeper", Subject: "alice", ExpiresAt: valid.ExpiresAt, NotBefore: jwt.NewNumericDate(c.Now().Add(time.Minute))}), want: jwtx.ErrNotYetValid},
	}

	all := []error{jwtx.ErrMalformed, jwtx.ErrBadSignature, jwtx.ErrExpired, jwtx.ErrUnsupported, jwtx.ErrIssuer, jwtx.ErrNotYetValid}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			require.ErrorIs(t, err, tt.want)
			for _, other := range all {
				if other != tt.want {
					require.NotErrorIs(t, err, other)
				}
			}
		})
	}
}

func TestBoundTo(t *testing.T) {
	svc, c := newService(t)

	tokenA, _, err := svc.Issue("alice", time.Minute)
	require.NoError(t, err)

	require.True(t, svc.BoundTo(tokenA, "alice"))
	require.False(t, svc.BoundTo(tokenA, "bob"))
	require.False(t, svc.BoundTo(tokenA, "Alice"))
	require.False(t, svc.BoundTo("garbage", "alice"))

	c.Advance(2 * time.Minute)
	require.False(t, svc.BoundTo(tokenA, "alice"), "expired tokens are never bound")
}

func TestVerifyConcurrent(t *testing.T) {
	svc, _ := newService(t)
	token, _, err := svc.Issue("alice", time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.True(t, svc.BoundTo(token, "alice"))
		}()
	}
	wg.Wait()
}
