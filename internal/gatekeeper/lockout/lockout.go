// Package lockout implements the account lockout state machine.
//
// The transition functions are pure and operate on a single account value.
// Machine persists them through the store with a version compare-and-swap so
// that concurrent failures on one account cannot under-count.
package lockout

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

// DefaultMaxFailedAttempts is the number of consecutive failures that locks an
// account.
const DefaultMaxFailedAttempts = 5

// Refusals from BeginAttempt and a conditional RecordSuccess.
var (
	ErrLocked   = errors.New("lockout: account locked")
	ErrDisabled = errors.New("lockout: account disabled")
)

type State int

const (
	Active State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "LOCKED"
	}
	return "ACTIVE"
}

// StateOf reports the lockout state of a.
func StateOf(a *domain.Account) State {
	if a.Locked {
		return Locked
	}
	return Active
}

// Transition describes the effect of applying an event to an account.
// Changed is false when the account was left untouched.
type Transition struct {
	From    State
	To      State
	Changed bool
}

// Locked reports whether this transition is the ACTIVE to LOCKED edge.
func (t Transition) Locked() bool { return t.From == Active && t.To == Locked }

// Unlocked reports whether this transition is the LOCKED to ACTIVE edge.
func (t Transition) Unlocked() bool { return t.From == Locked && t.To == Active }

func settle(a *domain.Account, from State, changed bool) Transition {
	return Transition{From: from, To: StateOf(a), Changed: changed}
}

func lock(a *domain.Account, now time.Time) {
	at := now.UTC()
	a.Locked = true
	a.LockedAt = &at
}

func reset(a *domain.Account) bool {
	changed := a.Locked || a.LockedAt != nil || a.FailedAttempts != 0
	a.Locked = false
	a.LockedAt = nil
	a.FailedAttempts = 0
	return changed
}

// RecordFailure counts a failed authentication. The increment that reaches
// maxAttempts also locks the account. Failures against a locked account are
// ignored.
func RecordFailure(a *domain.Account, maxAttempts int, now time.Time) Transition {
	from := StateOf(a)
	if from == Locked {
		return settle(a, from, false)
	}

	a.FailedAttempts++
	if a.FailedAttempts >= maxAttempts {
		lock(a, now)
	}
	return settle(a, from, true)
}

// RecordSuccess returns the account to ACTIVE with no recorded failures.
func RecordSuccess(a *domain.Account) Transition {
	from := StateOf(a)
	return settle(a, from, reset(a))
}

// Unlock is the administrative unlock. It is a no-op on an ACTIVE account
// with no failures.
func Unlock(a *domain.Account) Transition {
	from := StateOf(a)
	return settle(a, from, reset(a))
}

// Lock is the administrative lock, applied regardless of the failure count.
func Lock(a *domain.Account, now time.Time) Transition {
	from := StateOf(a)
	if from == Locked {
		return settle(a, from, false)
	}
	lock(a, now)
	return settle(a, from, true)
}

// ResetFailedAttempts zeroes the failure counter and leaves the lock alone.
func ResetFailedAttempts(a *domain.Account) Transition {
	from := StateOf(a)
	if a.FailedAttempts == 0 {
		return settle(a, from, false)
	}
	a.FailedAttempts = 0
	return settle(a, from, true)
}

// BeginAttempt reserves one password check against a. The reservation is
// counted as a failure up front so parallel attempts share the same budget
// of maxAttempts. Locked and disabled accounts are refused, and so is an
// account whose budget is already taken by attempts still in flight.
func BeginAttempt(a *domain.Account, maxAttempts int) (Transition, error) {
	from := StateOf(a)
	switch {
	case from == Locked:
		return settle(a, from, false), ErrLocked
	case !a.Enabled:
		return settle(a, from, false), ErrDisabled
	case a.FailedAttempts >= maxAttempts:
		return settle(a, from, false), ErrLocked
	}
	a.FailedAttempts++
	return settle(a, from, true), nil
}

// ConfirmFailure settles a reserved attempt that failed. The count is already
// in place, so this only locks once the threshold is reached.
func ConfirmFailure(a *domain.Account, maxAttempts int, now time.Time) Transition {
	from := StateOf(a)
	if from == Locked || a.FailedAttempts < maxAttempts {
		return settle(a, from, false)
	}
	lock(a, now)
	return settle(a, from, true)
}

// ReleaseAttempt hands back a reservation whose credentials were correct but
// which did not complete a login. Locked accounts keep their count.
func ReleaseAttempt(a *domain.Account) Transition {
	from := StateOf(a)
	if from == Locked || a.FailedAttempts == 0 {
		return settle(a, from, false)
	}
	a.FailedAttempts--
	return settle(a, from, true)
}
