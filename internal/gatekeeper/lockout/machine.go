package lockout

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Machine applies lockout transitions to stored accounts.
type Machine struct {
	Accounts          store.Accounts
	MaxFailedAttempts int
	Now               func() time.Time

	// Logger is used for bulk operations. Per-request calls log through the
	// context logger.
	Logger *slog.Logger
}

// BulkResult summarises a bulk operation. Matched accounts satisfied the
// selection, Changed were written and Failed could not be transitioned.
type BulkResult struct {
	Matched int
	Changed int
	Failed  int
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Machine) threshold() int {
	if m.MaxFailedAttempts > 0 {
		return m.MaxFailedAttempts
	}
	return DefaultMaxFailedAttempts
}

func (m *Machine) logger(ctx context.Context) *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slogx.FromContext(ctx)
}

// apply runs event inside store.Update and reports the transition of the
// attempt that was persisted.
func (m *Machine) apply(ctx context.Context, id int64, event func(*domain.Account) Transition) (domain.Account, Transition, error) {
	return m.applyGuarded(ctx, id, func(a *domain.Account) (Transition, error) {
		return event(a), nil
	})
}

// applyGuarded is apply for events that can refuse. A refusal writes nothing
// and is returned as the error along with the account as it was read.
func (m *Machine) applyGuarded(ctx context.Context, id int64, event func(*domain.Account) (Transition, error)) (domain.Account, Transition, error) {
	var (
		last    Transition
		refusal error
	)
	a, _, err := store.Update(ctx, m.Accounts, id, func(a *domain.Account) bool {
		last, refusal = event(a)
		return refusal == nil && last.Changed
	})
	if err != nil {
		return domain.Account{}, Transition{}, err
	}
	return a, last, refusal
}

// RecordFailure counts a failed login for id and locks the account once the
// threshold is reached.
func (m *Machine) RecordFailure(ctx context.Context, id int64) (domain.Account, Transition, error) {
	now := m.now()
	a, t, err := m.apply(ctx, id, func(a *domain.Account) Transition {
		return RecordFailure(a, m.threshold(), now)
	})
	if err != nil {
		return a, t, err
	}

	l := slogx.FromContext(ctx)
	if t.Locked() {
		l.Warn("account locked after repeated failures",
			slog.Int64("account_id", a.ID),
			slog.Int("failed_attempts", a.FailedAttempts),
		)
	} else if t.Changed {
		l.Info("failed login recorded",
			slog.Int64("account_id", a.ID),
			slog.Int("failed_attempts", a.FailedAttempts),
		)
	}
	return a, t, nil
}

// BeginAttempt reserves a password check for id. It returns ErrLocked or
// ErrDisabled, with nothing written, when the fresh row refuses the attempt.
func (m *Machine) BeginAttempt(ctx context.Context, id int64) (domain.Account, Transition, error) {
	return m.applyGuarded(ctx, id, func(a *domain.Account) (Transition, error) {
		return BeginAttempt(a, m.threshold())
	})
}

// FailAttempt settles a reservation whose credentials were wrong.
func (m *Machine) FailAttempt(ctx context.Context, id int64) (domain.Account, Transition, error) {
	now := m.now()
	a, t, err := m.apply(ctx, id, func(a *domain.Account) Transition {
		return ConfirmFailure(a, m.threshold(), now)
	})
	if err != nil {
		return a, t, err
	}

	l := slogx.FromContext(ctx)
	if t.Locked() {
		l.Warn("account locked after repeated failures",
			slog.Int64("account_id", a.ID),
			slog.Int("failed_attempts", a.FailedAttempts),
		)
	} else {
		l.Info("failed login recorded",
			slog.Int64("account_id", a.ID),
			slog.Int("failed_attempts", a.FailedAttempts),
		)
	}
	return a, t, nil
}

// ReleaseAttempt returns a reservation that neither failed nor logged in.
func (m *Machine) ReleaseAttempt(ctx context.Context, id int64) (domain.Account, Transition, error) {
	return m.apply(ctx, id, ReleaseAttempt)
}

// RecordSuccess clears the counters for id and stamps LastLoginAt. The fresh
// row must still be unlocked and enabled, otherwise nothing is written and
// ErrLocked or ErrDisabled is returned. A lock that landed while the password
// was being checked is never undone here.
func (m *Machine) RecordSuccess(ctx context.Context, id int64) (domain.Account, Transition, error) {
	now := m.now().UTC()
	return m.applyGuarded(ctx, id, func(a *domain.Account) (Transition, error) {
		if a.Locked {
			return Transition{From: Locked, To: Locked}, ErrLocked
		}
		if !a.Enabled {
			return Transition{From: Active, To: Active}, ErrDisabled
		}
		t := RecordSuccess(a)
		a.LastLoginAt = &now
		t.Changed = true
		return t, nil
	})
}

func (m *Machine) Unlock(ctx context.Context, id int64) (domain.Account, Transition, error) {
	return m.apply(ctx, id, Unlock)
}

func (m *Machine) Lock(ctx context.Context, id int64) (domain.Account, Transition, error) {
	now := m.now()
	return m.apply(ctx, id, func(a *domain.Account) Transition { return Lock(a, now) })
}

func (m *Machine) ResetFailedAttempts(ctx context.Context, id int64) (domain.Account, Transition, error) {
	return m.apply(ctx, id, ResetFailedAttempts)
}

// UnlockAll unlocks every locked account.
func (m *Machine) UnlockAll(ctx context.Context) (BulkResult, error) {
	locked, err := m.Accounts.AllLocked(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	return m.bulk(ctx, "unlock", locked, m.Unlock), nil
}

// ResetAllFailedAttempts zeroes the counter of every account with at least
// one recorded failure.
func (m *Machine) ResetAllFailedAttempts(ctx context.Context) (BulkResult, error) {
	failing, err := m.Accounts.AllWithFailedAttempts(ctx, 1)
	if err != nil {
		return BulkResult{}, err
	}
	return m.bulk(ctx, "reset_failed_attempts", failing, m.ResetFailedAttempts), nil
}

// bulk transitions each account independently. A failure is logged and
// counted and the batch continues.
func (m *Machine) bulk(
	ctx context.Context,
	op string,
	accounts []domain.Account,
	fn func(context.Context, int64) (domain.Account, Transition, error),
) BulkResult {
	l := m.logger(ctx)
	res := BulkResult{Matched: len(accounts)}

	for _, a := range accounts {
		_, t, err := fn(ctx, a.ID)
		if err != nil {
			res.Failed++
			l.Error("bulk lockout operation failed for account",
				slog.String("op", op),
				slog.Int64("account_id", a.ID),
				slog.Any("error", err),
			)
			continue
		}
		if t.Changed {
			res.Changed++
		}
	}

	l.Info("bulk lockout operation completed",
		slog.String("op", op),
		slog.Int("matched", res.Matched),
		slog.Int("changed", res.Changed),
		slog.Int("failed", res.Failed),
	)
	return res
}
