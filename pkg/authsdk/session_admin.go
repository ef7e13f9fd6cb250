package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListUsers returns every account. Requires ROLE_ADMIN.
func (s *Session) ListUsers(ctx context.Context) ([]UserInfoResponse, error) {
	var out []UserInfoResponse
	if err := s.do(ctx, http.MethodGet, "/api/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser returns one account by id.
func (s *Session) GetUser(ctx context.Context, id int64) (*UserInfoResponse, error) {
	var out UserInfoResponse
	if err := s.do(ctx, http.MethodGet, userPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRole sets the account's role, e.g. "ROLE_ADMIN".
func (s *Session) UpdateRole(ctx context.Context, id int64, role string) (*MessageResponse, error) {
	return s.message(ctx, http.MethodPut, userPath(id, "/role")+"?roleName="+url.QueryEscape(role))
}

// EnableUser enables the account.
func (s *Session) EnableUser(ctx context.Context, id int64) (*MessageResponse, error) {
	return s.message(ctx, http.MethodPut, userPath(id, "/enable"))
}

// DisableUser disables the account.
func (s *Session) DisableUser(ctx context.Context, id int64) (*MessageResponse, error) {
	return s.message(ctx, http.MethodPut, userPath(id, "/disable"))
}

// LockUser locks the account regardless of its failure counter.
func (s *Session) LockUser(ctx context.Context, id int64) (*MessageResponse, error) {
	return s.message(ctx, http.MethodPut, userPath(id, "/lock"))
}

// UnlockUser unlocks the account and clears its failure counter.
func (s *Session) UnlockUser(ctx context.Context, id int64) (*MessageResponse, error) {
	return s.message(ctx, http.MethodPut, userPath(id, "/unlock"))
}

// ResetFailedAttempts zeroes the failure counter without touching the lock.
func (s *Session) ResetFailedAttempts(ctx context.Context, id int64) (*MessageResponse, error) {
	return s.message(ctx, http.MethodPost, userPath(id, "/reset-failed-attempts"))
}

// FailedAttempts lists accounts with at least minAttempts failed attempts.
func (s *Session) FailedAttempts(ctx context.Context, minAttempts int) ([]UserInfoResponse, error) {
	var out []UserInfoResponse
	path := "/api/admin/security/failed-attempts?minAttempts=" + strconv.Itoa(minAttempts)
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InactiveUsers lists accounts that have not signed in for days.
func (s *Session) InactiveUsers(ctx context.Context, days int) ([]UserInfoResponse, error) {
	var out []UserInfoResponse
	path := "/api/admin/security/inactive-users?daysSinceLastLogin=" + strconv.Itoa(days)
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnlockAll unlocks every locked account.
func (s *Session) UnlockAll(ctx context.Context) (*BulkResponse, error) {
	return s.bulk(ctx, "/api/admin/security/unlock-all-accounts")
}

// ResetAllFailedAttempts zeroes every non-zero failure counter.
func (s *Session) ResetAllFailedAttempts(ctx context.Context) (*BulkResponse, error) {
	return s.bulk(ctx, "/api/admin/security/reset-failed-attempts")
}

func (s *Session) message(ctx context.Context, method, path string) (*MessageResponse, error) {
	var out MessageResponse
	if err := s.do(ctx, method, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) bulk(ctx context.Context, path string) (*BulkResponse, error) {
	var out BulkResponse
	if err := s.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func userPath(id int64, suffix string) string {
	return fmt.Sprintf("/api/admin/users/%d%s", id, suffix)
}
