package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Session makes requests with a bearer token. There is no refresh: once the
// token expires the caller signs in again.
type Session struct {
	client *Client
	token  string
}

// Token returns the bearer token.
func (s *Session) Token() string { return s.token }

// CurrentUser returns the caller's profile.
func (s *Session) CurrentUser(ctx context.Context) (*UserInfoResponse, error) {
	var out UserInfoResponse
	if err := s.do(ctx, http.MethodGet, "/api/auth/user", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Username returns the caller's username, or "" when the token was not
// accepted.
func (s *Session) Username(ctx context.Context) (string, error) {
	var out UsernameResponse
	if err := s.do(ctx, http.MethodGet, "/api/auth/username", nil, &out); err != nil {
		return "", err
	}
	return out.Username, nil
}

// ChangePassword replaces the caller's password.
func (s *Session) ChangePassword(ctx context.Context, current, next string) (*MessageResponse, error) {
	var out MessageResponse
	req := ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	if err := s.do(ctx, http.MethodPost, "/api/auth/change-password", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout asks the server to expire the session cookie. Bearer tokens stay
// valid until they expire.
func (s *Session) Logout(ctx context.Context) (*MessageResponse, error) {
	var out MessageResponse
	if err := s.do(ctx, http.MethodPost, "/api/auth/logout", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends an authenticated request with an optional JSON body.
func (s *Session) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	headers := map[string]string{}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
		headers["Content-Type"] = "application/json"
	}

	resp, err := s.client.doRequest(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, http.StatusOK)
}
