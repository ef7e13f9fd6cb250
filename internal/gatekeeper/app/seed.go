package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
)

// SeedAdmin provisions the configured administrator if no account holds the
// username yet. It is a no-op when no admin password is configured, so the
// seed never overwrites an existing account.
func SeedAdmin(
	ctx context.Context,
	cfg Config,
	accounts store.Accounts,
	registration *service.RegistrationService,
	logger *slog.Logger,
) error {
	if cfg.AdminPassword == "" {
		logger.Info("admin seed skipped, no password configured")
		return nil
	}

	req := authsdk.SignupRequest{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}
	if fields := req.Validate(); fields != nil {
		return fmt.Errorf("admin seed: %w", &service.ValidationError{Fields: fields})
	}

	exists, err := accounts.ExistsByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("admin seed: %w", err)
	}
	if exists {
		logger.Info("admin seed skipped, account exists", slog.String("username", cfg.AdminUsername))
		return nil
	}

	a, err := registration.Provision(ctx, service.NewAccount{
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		Password:     cfg.AdminPassword,
		Role:         domain.RoleAdmin,
		SignUpMethod: domain.SignUpSystem,
		CreatedBy:    service.CreatedBySystem,
	})
	if err != nil {
		return fmt.Errorf("admin seed: %w", err)
	}

	logger.Info("admin account seeded", slog.Int64("account_id", a.ID), slog.String("username", a.Username))
	return nil
}
