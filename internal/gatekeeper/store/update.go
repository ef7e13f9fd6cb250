package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

// MaxUpdateAttempts bounds the compare-and-swap loop in Update.
const MaxUpdateAttempts = 32

// Update loads the account, applies fn and saves the result with a version
// check, retrying from a fresh read on ErrConflict. fn must be a pure
// function of the account it is given since it can run more than once. When
// fn returns false nothing is written and the loaded account is returned.
func Update(ctx context.Context, accounts Accounts, id int64, fn func(*domain.Account) bool) (domain.Account, bool, error) {
	for range MaxUpdateAttempts {
		if err := ctx.Err(); err != nil {
			return domain.Account{}, false, err
		}

		a, err := accounts.FindByID(ctx, id)
		if err != nil {
			return domain.Account{}, false, err
		}
		if !fn(&a) {
			return a, false, nil
		}

		saved, err := accounts.Save(ctx, a)
		switch {
		case err == nil:
			return saved, true, nil
		case errors.Is(err, ErrConflict):
			continue
		default:
			return domain.Account{}, false, err
		}
	}
	return domain.Account{}, false, fmt.Errorf("%w: gave up after %d attempts", ErrConflict, MaxUpdateAttempts)
}
