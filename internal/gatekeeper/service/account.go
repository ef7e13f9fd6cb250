package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// AccountService serves the signed-in caller's own account.
type AccountService struct {
	Accounts store.Accounts
	Hasher   PasswordHasher
	Now      func() time.Time
}

func (s *AccountService) Profile(ctx context.Context, id int64) (domain.Account, error) {
	a, err := s.Accounts.FindByID(ctx, id)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

// ChangePassword replaces the password after checking the current one and
// renews the credentials expiry.
func (s *AccountService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	req := authsdk.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	if fields := req.Validate(); fields != nil {
		return &ValidationError{Fields: fields}
	}

	a, err := s.Accounts.FindByID(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if err := s.Hasher.Verify(current, a.PasswordHash); err != nil {
		slogx.FromContext(ctx).Warn("password change rejected", slog.Int64("account_id", id))
		return ErrWrongPassword
	}

	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return wrap("hash password", err)
	}
	expiry := domain.Date(nowFunc(s.Now).AddDate(CredentialsLifetimeYears, 0, 0))

	_, _, err = store.Update(ctx, s.Accounts, id, func(a *domain.Account) bool {
		a.PasswordHash = hash
		a.CredentialsExpiry = expiry
		return true
	})
	if err != nil {
		return mapNotFound(err)
	}

	slogx.FromContext(ctx).Info("password changed", slog.Int64("account_id", id))
	return nil
}
