package slogx_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slogx.NewHandler(slogx.Config{Output: buf, Level: "debug", Format: "json"}))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestRedactSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Info("signin",
		"username", "alice",
		"password", "hunter22",
		"token_secret", "abc",
		"accessToken", "eyJx.eyJy.z",
	)

	m := decodeLine(t, &buf)
	require.Equal(t, "alice", m["username"])
	require.Equal(t, slogx.Redacted, m["password"])
	require.Equal(t, slogx.Redacted, m["token_secret"])
	require.Equal(t, slogx.Redacted, m["accessToken"])
	require.NotContains(t, buf.String(), "hunter22")
}

func TestRedactStringValues(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "password assignment", in: "login password=hunter22 ok", want: "login password=[REDACTED] ok"},
		{name: "token colon", in: "token: abc.def", want: "token: [REDACTED]"},
		{name: "quoted secret", in: `secret="a b c"`, want: "secret=[REDACTED]"},
		{name: "bearer header", in: "Authorization Bearer abc.def-ghi", want: "Authorization Bearer [REDACTED]"},
		{name: "bare jwt", in: "got eyJhbGciOi.eyJzdWIiOi.sig_part here", want: "got [REDACTED] here"},
		{name: "clean text", in: "account locked", want: "account locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, slogx.RedactString(tt.in))
		})
	}
}

func TestRedactGroupsAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf).With("password", "preset").WithGroup("req")

	log.Info("Bearer abc.def in message",
		slog.Group("headers", "authorization", "Bearer abc", "accept", "json"),
		"err", errors.New("parse failed: token=abc"),
	)

	out := buf.String()
	require.NotContains(t, out, "preset")
	require.NotContains(t, out, "abc")

	m := decodeLine(t, &buf)
	require.Equal(t, "Bearer [REDACTED] in message", m["msg"])
	req := m["req"].(map[string]any)
	headers := req["headers"].(map[string]any)
	require.Equal(t, slogx.Redacted, headers["authorization"])
	require.Equal(t, "json", headers["accept"])
	require.Equal(t, "parse failed: token=[REDACTED]", req["err"])
}

type loginForm struct {
	Username string
	Password string
}

type dsn string

func (d dsn) String() string { return "postgres://app:pw@db/auth?password=" + string(d) }

func TestRedactArbitraryValues(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Info("request",
		slog.Any("form", loginForm{Username: "alice", Password: "hunter22"}),
		slog.Any("formPtr", &loginForm{Username: "bob", Password: "swordfish"}),
		slog.Any("fields", map[string]string{"password": "letmein"}),
		slog.Any("db", dsn("s3cr3t")),
	)

	out := buf.String()
	for _, leaked := range []string{"hunter22", "swordfish", "letmein", "s3cr3t"} {
		require.NotContains(t, out, leaked)
	}

	m := decodeLine(t, &buf)
	require.Contains(t, m["form"], "Username:alice")
	require.Contains(t, m["formPtr"], "Username:bob")
}

func TestRedactIsIdempotent(t *testing.T) {
	h := slogx.Redact(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	require.Same(t, h, slogx.Redact(h))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, slogx.ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("nonsense"))
}
