package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/lockout"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// Query defaults for the security reports.
const (
	DefaultMinAttempts        = 3
	DefaultDaysSinceLastLogin = 90
)

type AdminSecurityHandler struct {
	AdminService *service.AdminService
}

// HandleFailedAttempts lists accounts with recorded login failures.
//
//	@Summary		Accounts with failed logins
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			minAttempts	query		int							false	"Minimum failures"	default(3)
//	@Success		200			{array}		authsdk.UserInfoResponse	"Accounts ordered by id"
//	@Failure		400			{object}	authsdk.MessageResponse		"Malformed minAttempts"
//	@Failure		403			{object}	authsdk.MessageResponse		"Not an administrator"
//	@Router			/api/admin/security/failed-attempts [get].
func (h *AdminSecurityHandler) HandleFailedAttempts(w http.ResponseWriter, r *http.Request) {
	minAttempts, ok := queryInt(r, "minAttempts", DefaultMinAttempts)
	if !ok {
		authsdk.NewValidationError(map[string]string{"minAttempts": "must be a non-negative integer"}).WriteError(w)
		return
	}
	h.report(w, r, "failed attempts report", func(ctx context.Context) ([]domain.Account, error) {
		return h.AdminService.FailedAttempts(ctx, minAttempts)
	})
}

// HandleInactive lists accounts without a recent login.
//
//	@Summary		Inactive accounts
//	@Description	Accounts whose last login is older than daysSinceLastLogin, including accounts that never logged in.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			daysSinceLastLogin	query		int							false	"Days without login"	default(90)
//	@Success		200					{array}		authsdk.UserInfoResponse	"Accounts ordered by id"
//	@Failure		400					{object}	authsdk.MessageResponse		"Malformed daysSinceLastLogin"
//	@Failure		403					{object}	authsdk.MessageResponse		"Not an administrator"
//	@Router			/api/admin/security/inactive-users [get].
func (h *AdminSecurityHandler) HandleInactive(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "daysSinceLastLogin", DefaultDaysSinceLastLogin)
	if !ok {
		authsdk.NewValidationError(map[string]string{"daysSinceLastLogin": "must be a non-negative integer"}).WriteError(w)
		return
	}
	h.report(w, r, "inactive accounts report", func(ctx context.Context) ([]domain.Account, error) {
		return h.AdminService.Inactive(ctx, days)
	})
}

// HandleUnlockAll unlocks every locked account.
//
//	@Summary		Unlock all accounts
//	@Description	Unlocks every locked account. Accounts that fail to update are counted and skipped.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.BulkResponse	"matched, changed and failed counts"
//	@Failure		403	{object}	authsdk.MessageResponse	"Not an administrator"
//	@Router			/api/admin/security/unlock-all-accounts [post].
func (h *AdminSecurityHandler) HandleUnlockAll(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, "unlock all", "All accounts unlocked successfully", h.AdminService.UnlockAll)
}

// HandleResetAll clears every failure counter.
//
//	@Summary		Reset all failed attempts
//	@Description	Clears the failure counter of every account that has one. Accounts that fail to update are counted and skipped.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.BulkResponse	"matched, changed and failed counts"
//	@Failure		403	{object}	authsdk.MessageResponse	"Not an administrator"
//	@Router			/api/admin/security/reset-failed-attempts [post].
func (h *AdminSecurityHandler) HandleResetAll(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, "reset all failed attempts", "All failed login attempts reset successfully", h.AdminService.ResetAllFailedAttempts)
}

func (h *AdminSecurityHandler) report(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(context.Context) ([]domain.Account, error),
) {
	accounts, err := fn(r.Context())
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userInfos(accounts, time.Now()))
}

func (h *AdminSecurityHandler) bulk(
	w http.ResponseWriter,
	r *http.Request,
	op, message string,
	fn func(context.Context) (lockout.BulkResult, error),
) {
	res, err := fn(r.Context())
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	msg := authsdk.NewMessage(message)
	if res.Failed > 0 {
		msg.Success = false
		msg.Message = "Some accounts could not be updated"
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BulkResponse{
		MessageResponse: msg,
		Matched:         res.Matched,
		Changed:         res.Changed,
		Failed:          res.Failed,
	})
}
