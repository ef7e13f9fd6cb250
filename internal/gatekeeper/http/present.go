package http

import (
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
)

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// userInfo renders an account for the profile and admin views. Secrets and
// the password hash never leave the service.
func userInfo(a domain.Account, now time.Time) authsdk.UserInfoResponse {
	return authsdk.UserInfoResponse{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Roles:    []string{a.Role.Authority()},

		AccountNonLocked:      !a.Locked,
		AccountNonExpired:     !a.AccountExpired(now),
		CredentialsNonExpired: !a.CredentialsExpired(now),
		Enabled:               a.Enabled,

		CredentialsExpiryDate: formatDate(a.CredentialsExpiry),
		AccountExpiryDate:     formatDate(a.AccountExpiry),

		TwoFactorEnabled:    a.TwoFactorEnabled,
		SignUpMethod:        a.SignUpMethod,
		FailedLoginAttempts: a.FailedAttempts,
		LockTime:            utcPtr(a.LockedAt),
		LastLoginDate:       utcPtr(a.LastLoginAt),
		CreatedDate:         a.CreatedAt.UTC(),
	}
}

func userInfos(accounts []domain.Account, now time.Time) []authsdk.UserInfoResponse {
	out := make([]authsdk.UserInfoResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, userInfo(a, now))
	}
	return out
}
