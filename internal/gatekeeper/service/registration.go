package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// CreatedBySystem marks accounts created without an acting administrator.
const CreatedBySystem = "SYSTEM"

type RegistrationService struct {
	Accounts store.Accounts
	Hasher   PasswordHasher
	Now      func() time.Time
}

// NewAccount describes an account to provision.
type NewAccount struct {
	Username     string
	Email        string
	Password     string
	Role         domain.Role
	SignUpMethod string
	CreatedBy    string
}

// Register creates an enabled USER account from a sign-up request.
func (s *RegistrationService) Register(ctx context.Context, req authsdk.SignupRequest) (domain.Account, error) {
	if fields := req.Validate(); fields != nil {
		return domain.Account{}, &ValidationError{Fields: fields}
	}

	return s.Provision(ctx, NewAccount{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		Role:         domain.RoleUser,
		SignUpMethod: domain.SignUpEmail,
		CreatedBy:    CreatedBySystem,
	})
}

// Provision creates an account with the given role. Input validation is the
// caller's job; uniqueness is checked here.
func (s *RegistrationService) Provision(ctx context.Context, n NewAccount) (domain.Account, error) {
	l := slogx.FromContext(ctx).With(slog.String("username", n.Username))

	if !n.Role.Valid() {
		return domain.Account{}, ErrInvalidRole
	}
	if err := s.checkAvailable(ctx, n.Username, n.Email); err != nil {
		l.Warn("registration rejected", slog.String("reason", err.Error()))
		return domain.Account{}, err
	}

	hash, err := s.Hasher.Hash(n.Password)
	if err != nil {
		return domain.Account{}, wrap("hash password", err)
	}

	now := nowFunc(s.Now).UTC()
	saved, err := s.Accounts.Save(ctx, domain.Account{
		Username:          n.Username,
		Email:             strings.ToLower(strings.TrimSpace(n.Email)),
		PasswordHash:      hash,
		Enabled:           true,
		CredentialsExpiry: domain.Date(now.AddDate(CredentialsLifetimeYears, 0, 0)),
		AccountExpiry:     domain.Date(now.AddDate(AccountLifetimeYears, 0, 0)),
		Role:              n.Role,
		SignUpMethod:      n.SignUpMethod,
		CreatedBy:         n.CreatedBy,
		CreatedAt:         now,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent registration.
		if err := s.checkAvailable(ctx, n.Username, n.Email); err != nil {
			return domain.Account{}, err
		}
		return domain.Account{}, ErrUsernameTaken
	}
	if err != nil {
		return domain.Account{}, wrap("save account", err)
	}

	l.Info("account registered",
		slog.Int64("account_id", saved.ID),
		slog.String("role", saved.Role.String()),
		slog.String("sign_up_method", saved.SignUpMethod),
	)
	return saved, nil
}

func (s *RegistrationService) checkAvailable(ctx context.Context, username, email string) error {
	taken, err := s.Accounts.ExistsByUsername(ctx, username)
	if err != nil {
		return wrap("check username", err)
	}
	if taken {
		return ErrUsernameTaken
	}

	taken, err = s.Accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return wrap("check email", err)
	}
	if taken {
		return ErrEmailTaken
	}
	return nil
}
