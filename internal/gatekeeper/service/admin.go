package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/lockout"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// AdminService backs the administrative endpoints. Every single-account
// operation is idempotent and reports whether it changed anything.
type AdminService struct {
	Accounts store.Accounts
	Lockout  *lockout.Machine
	Now      func() time.Time
}

func (s *AdminService) List(ctx context.Context) ([]domain.Account, error) {
	return s.Accounts.List(ctx)
}

func (s *AdminService) Get(ctx context.Context, id int64) (domain.Account, error) {
	a, err := s.Accounts.FindByID(ctx, id)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (s *AdminService) transition(
	ctx context.Context,
	op string,
	id int64,
	fn func(context.Context, int64) (domain.Account, lockout.Transition, error),
) (bool, error) {
	_, t, err := fn(ctx, id)
	if err != nil {
		return false, mapNotFound(err)
	}
	slogx.FromContext(ctx).Info("admin "+op,
		slog.Int64("account_id", id),
		slog.Bool("changed", t.Changed),
		slog.String("state", t.To.String()),
	)
	return t.Changed, nil
}

func (s *AdminService) Unlock(ctx context.Context, id int64) (bool, error) {
	return s.transition(ctx, "unlock", id, s.Lockout.Unlock)
}

func (s *AdminService) Lock(ctx context.Context, id int64) (bool, error) {
	return s.transition(ctx, "lock", id, s.Lockout.Lock)
}

func (s *AdminService) ResetFailedAttempts(ctx context.Context, id int64) (bool, error) {
	return s.transition(ctx, "reset failed attempts", id, s.Lockout.ResetFailedAttempts)
}

func (s *AdminService) UnlockAll(ctx context.Context) (lockout.BulkResult, error) {
	return s.Lockout.UnlockAll(ctx)
}

func (s *AdminService) ResetAllFailedAttempts(ctx context.Context) (lockout.BulkResult, error) {
	return s.Lockout.ResetAllFailedAttempts(ctx)
}

func (s *AdminService) update(ctx context.Context, op string, id int64, fn func(*domain.Account) bool) (bool, error) {
	_, changed, err := store.Update(ctx, s.Accounts, id, fn)
	if err != nil {
		return false, mapNotFound(err)
	}
	slogx.FromContext(ctx).Info("admin "+op, slog.Int64("account_id", id), slog.Bool("changed", changed))
	return changed, nil
}

func (s *AdminService) Enable(ctx context.Context, id int64) (bool, error) {
	return s.update(ctx, "enable", id, func(a *domain.Account) bool {
		if a.Enabled {
			return false
		}
		a.Enabled = true
		return true
	})
}

func (s *AdminService) Disable(ctx context.Context, id int64) (bool, error) {
	return s.update(ctx, "disable", id, func(a *domain.Account) bool {
		if !a.Enabled {
			return false
		}
		a.Enabled = false
		return true
	})
}

// ChangeRole is the only operation that modifies an account's role.
func (s *AdminService) ChangeRole(ctx context.Context, id int64, roleName string) (bool, error) {
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, roleName)
	}
	return s.update(ctx, "change role to "+role.String(), id, func(a *domain.Account) bool {
		if a.Role == role {
			return false
		}
		a.Role = role
		return true
	})
}

// FailedAttempts lists accounts with at least minAttempts recorded failures.
func (s *AdminService) FailedAttempts(ctx context.Context, minAttempts int) ([]domain.Account, error) {
	return s.Accounts.AllWithFailedAttempts(ctx, max(minAttempts, 1))
}

// Inactive lists accounts that have not logged in for days, including those
// that never have.
func (s *AdminService) Inactive(ctx context.Context, days int) ([]domain.Account, error) {
	if days < 0 {
		return nil, &ValidationError{Fields: map[string]string{"daysSinceLastLogin": "must not be negative"}}
	}
	cutoff := nowFunc(s.Now).AddDate(0, 0, -days)
	return s.Accounts.AllLastLoginBefore(ctx, cutoff)
}
