package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the public gatekeeper endpoints. Authenticated
// calls go through a Session.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a 10 second timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Signin authenticates with a username and password. On success the
// returned Session carries the issued token. When the account has a second
// factor and req.Code is empty the response is returned together with
// ErrTwoFactorRequired and a nil Session.
func (c *Client) Signin(ctx context.Context, req SigninRequest) (*Session, *SigninResponse, error) {
	var out SigninResponse
	if err := c.postJSON(ctx, "/api/auth/public/signin", req, &out); err != nil {
		return nil, nil, err
	}
	if out.TwoFactorRequired {
		return nil, &out, ErrTwoFactorRequired
	}
	if out.JWTToken == "" {
		return nil, &out, errors.New("authsdk: signin response carried no token")
	}
	return c.Session(out.JWTToken), &out, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.postJSON(ctx, "/api/auth/public/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword requests a reset notice. The response is identical whether
// or not the email is known.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.postJSON(ctx, "/api/auth/public/forgot-password", ForgotPasswordRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session returns a Session that authenticates with token.
func (c *Client) Session(token string) *Session {
	return &Session{client: c, token: token}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, http.StatusOK)
}
