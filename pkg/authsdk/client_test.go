package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/public/signin", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.SigninRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch {
		case req.Username == "locked":
			authsdk.ErrAccountLocked.WriteError(w)
		case req.Username == "mfa" && req.Code == "":
			_ = json.NewEncoder(w).Encode(authsdk.SigninResponse{ID: 2, Username: "mfa", TwoFactorRequired: true})
		case req.Password != "Passw0rd1":
			authsdk.ErrInvalidCredentials.WriteError(w)
		default:
			exp := time.Now().Add(time.Hour)
			_ = json.NewEncoder(w).Encode(authsdk.SigninResponse{
				ID: 1, Username: req.Username, Roles: []string{"ROLE_USER"},
				JWTToken: "tok-" + req.Username, TokenType: "Bearer", ExpiresAt: &exp,
			})
		}
	})
	mux.HandleFunc("GET /api/auth/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-alice" {
			authsdk.ErrUnauthorized.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.UserInfoResponse{ID: 1, Username: "alice", Roles: []string{"ROLE_USER"}})
	})
	mux.HandleFunc("POST /api/admin/security/unlock-all-accounts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authsdk.BulkResponse{
			MessageResponse: authsdk.NewMessage("Unlocked 2 accounts"),
			Matched:         2, Changed: 2,
		})
	})
	mux.HandleFunc("PUT /api/admin/users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "7", r.PathValue("id"))
		require.Equal(t, "ROLE_ADMIN", r.URL.Query().Get("roleName"))
		_ = json.NewEncoder(w).Encode(authsdk.NewMessage("Role updated"))
	})
	mux.HandleFunc("POST /api/auth/public/signup", func(w http.ResponseWriter, r *http.Request) {
		authsdk.NewValidationError(map[string]string{"username": "must be 3-20 characters"}).WriteError(w)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSigninAndCurrentUser(t *testing.T) {
	srv := newFakeServer(t)
	client := authsdk.NewClient(srv.URL + "/")
	ctx := context.Background()

	session, resp, err := client.Signin(ctx, authsdk.SigninRequest{Username: "alice", Password: "Passw0rd1"})
	require.NoError(t, err)
	require.Equal(t, "tok-alice", session.Token())
	require.Equal(t, "Bearer", resp.TokenType)
	require.NotNil(t, resp.ExpiresAt)

	me, err := session.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)
}

func TestSigninErrors(t *testing.T) {
	srv := newFakeServer(t)
	client := authsdk.NewClient(srv.URL)
	ctx := context.Background()

	_, _, err := client.Signin(ctx, authsdk.SigninRequest{Username: "alice", Password: "nope"})
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	_, _, err = client.Signin(ctx, authsdk.SigninRequest{Username: "locked", Password: "Passw0rd1"})
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusLocked, apiErr.StatusCode)
	require.ErrorIs(t, err, authsdk.ErrAccountLocked)

	session, resp, err := client.Signin(ctx, authsdk.SigninRequest{Username: "mfa", Password: "Passw0rd1"})
	require.ErrorIs(t, err, authsdk.ErrTwoFactorRequired)
	require.Nil(t, session)
	require.True(t, resp.TwoFactorRequired)
}

func TestSessionUnauthorized(t *testing.T) {
	srv := newFakeServer(t)
	_, err := authsdk.NewClient(srv.URL).Session("bogus").CurrentUser(context.Background())
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)
}

func TestAdminCalls(t *testing.T) {
	srv := newFakeServer(t)
	session := authsdk.NewClient(srv.URL).Session("admin")
	ctx := context.Background()

	res, err := session.UnlockAll(ctx)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 2, res.Matched)
	require.Equal(t, 2, res.Changed)

	msg, err := session.UpdateRole(ctx, 7, "ROLE_ADMIN")
	require.NoError(t, err)
	require.Equal(t, "Role updated", msg.Message)
}

func TestValidationErrorDetails(t *testing.T) {
	srv := newFakeServer(t)
	_, err := authsdk.NewClient(srv.URL).Signup(context.Background(), authsdk.SignupRequest{Username: "a"})

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "must be 3-20 characters", apiErr.Details["username"])
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	authsdk.ErrUnauthorized.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
	require.Equal(t, authsdk.ErrUnauthorized.Message, body["message"])
	require.NotEmpty(t, body["timestamp"])
	require.NotContains(t, body, "details")
}
