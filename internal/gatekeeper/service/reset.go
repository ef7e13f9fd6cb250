package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// ResetNotifier delivers password-reset instructions for an account.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, a domain.Account) error
}

// LogNotifier records reset requests in the log instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyPasswordReset(ctx context.Context, a domain.Account) error {
	l := n.Logger
	if l == nil {
		l = slogx.FromContext(ctx)
	}
	l.Info("password reset requested",
		slog.Int64("account_id", a.ID),
		slog.String("email", MaskEmail(a.Email)),
	)
	return nil
}

type PasswordResetService struct {
	Accounts store.Accounts
	Notifier ResetNotifier
}

// Request hands the account owning email to the notifier. The caller always
// reports the same generic outcome, so nothing is returned.
func (s *PasswordResetService) Request(ctx context.Context, email string) {
	l := slogx.FromContext(ctx).With(slog.String("email", MaskEmail(email)))

	a, err := s.Accounts.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		l.Info("password reset for unknown email")
		return
	}
	if err != nil {
		l.Error("password reset lookup failed", slog.Any("error", err))
		return
	}
	if !a.Enabled {
		l.Info("password reset for disabled account", slog.Int64("account_id", a.ID))
		return
	}

	if err := s.Notifier.NotifyPasswordReset(ctx, a); err != nil {
		l.Error("password reset notification failed", slog.Int64("account_id", a.ID), slog.Any("error", err))
	}
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	local, domainPart, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return "***"
	}
	return string([]rune(local)[:1]) + "***@" + domainPart
}
