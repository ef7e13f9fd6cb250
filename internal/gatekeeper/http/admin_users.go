package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// AdminUsersHandler serves the per-account administration endpoints. Every
// state change is idempotent and answers with the same message whether or
// not the account changed.
type AdminUsersHandler struct {
	AdminService *service.AdminService
}

// HandleList lists every account.
//
//	@Summary		List accounts
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		authsdk.UserInfoResponse	"Accounts ordered by id"
//	@Failure		401	{object}	authsdk.MessageResponse		"Not authenticated"
//	@Failure		403	{object}	authsdk.MessageResponse		"Not an administrator"
//	@Router			/api/admin/users [get].
func (h *AdminUsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.AdminService.List(r.Context())
	if err != nil {
		writeError(w, r, "list accounts", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userInfos(accounts, time.Now()))
}

// HandleGet returns one account.
//
//	@Summary		Get account
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int							true	"Account ID"
//	@Success		200	{object}	authsdk.UserInfoResponse	"Account"
//	@Failure		400	{object}	authsdk.MessageResponse		"Malformed id"
//	@Failure		403	{object}	authsdk.MessageResponse		"Not an administrator"
//	@Failure		404	{object}	authsdk.MessageResponse		"No such account"
//	@Router			/api/admin/users/{id} [get].
func (h *AdminUsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	a, err := h.AdminService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, "get account", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userInfo(a, time.Now()))
}

// HandleRole changes an account's role.
//
//	@Summary		Change role
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id			path		int						true	"Account ID"
//	@Param			roleName	query		string					true	"USER or ADMIN, with or without the ROLE_ prefix"
//	@Success		200			{object}	authsdk.MessageResponse	"Role updated"
//	@Failure		400			{object}	authsdk.MessageResponse	"Malformed id or unknown role"
//	@Failure		403			{object}	authsdk.MessageResponse	"Not an administrator"
//	@Failure		404			{object}	authsdk.MessageResponse	"No such account"
//	@Router			/api/admin/users/{id}/role [put].
func (h *AdminUsersHandler) HandleRole(w http.ResponseWriter, r *http.Request) {
	roleName := r.URL.Query().Get("roleName")
	if roleName == "" {
		authsdk.NewValidationError(map[string]string{"roleName": "required"}).WriteError(w)
		return
	}

	h.change(w, r, "change role", "User role updated successfully", func(ctx context.Context, id int64) (bool, error) {
		return h.AdminService.ChangeRole(ctx, id, roleName)
	})
}

// HandleEnable enables an account.
//
//	@Summary		Enable account
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int						true	"Account ID"
//	@Success		200	{object}	authsdk.MessageResponse	"Enabled, or already enabled"
//	@Failure		403	{object}	authsdk.MessageResponse	"Not an administrator"
//	@Failure		404	{object}	authsdk.MessageResponse	"No such account"
//	@Router			/api/admin/users/{id}/enable [put].
func (h *AdminUsersHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "enable", "User enabled successfully", h.AdminService.Enable)
}

// HandleDisable disables an account.
//
//	@Summary		Disable account
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int						true	"Account ID"
//	@Success		200	{object}	authsdk.MessageResponse	"Disabled, or already disabled"
//	@Failure		403	{object}	authsdk.MessageResponse	"Not an administrator"
//	@Failure		404	{object}	authsdk.MessageResponse	"No such account"
//	@Router			/api/admin/users/{id}/disable [put].
func (h *AdminUsersHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "disable", "User disabled successfully", h.AdminService.Disable)
}

// HandleLock locks an account.
//
//	@Summary		Lock account
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int						true	"Account ID"
//	@Success		200	{object}	authsdk.MessageResponse	"Locked, or already locked"
//	@Failure		403	{object}	authsdk.MessageResponse	"Not an administrator"
//	@Failure		404	{object}	authsdk.MessageResponse	"No such account"
//	@Router			/api/admin/users/{id}/lock [put].
func (h *AdminUsersHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "lock", "User account locked successfully", h.AdminService.Lock)
}

// HandleUnlock unlocks an account and clears its failure counter.
//
//	@Summary		Unlock account
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int						true	"Account ID"
//	@Success		200	{object}	authsdk.MessageResponse	"Unlocked, or already unlocked"
//	@Failure		403	{object}	authsdk.MessageResponse	"Not an administrator"
//	@Failure		404	{object}	authsdk.MessageResponse	"No such account"
//	@Router			/api/admin/users/{id}/unlock [put].
func (h *AdminUsersHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "unlock", "User account unlocked successfully", h.AdminService.Unlock)
}

// HandleResetFailedAttempts clears an account's failure counter.
//
//	@Summary		Reset failed attempts
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int						true	"Account ID"
//	@Success		200	{object}	authsdk.MessageResponse	"Counter reset"
//	@Failure		403	{object}	authsdk.MessageResponse	"Not an administrator"
//	@Failure		404	{object}	authsdk.MessageResponse	"No such account"
//	@Router			/api/admin/users/{id}/reset-failed-attempts [post].
func (h *AdminUsersHandler) HandleResetFailedAttempts(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "reset failed attempts", "Failed login attempts reset successfully", h.AdminService.ResetFailedAttempts)
}

func (h *AdminUsersHandler) change(
	w http.ResponseWriter,
	r *http.Request,
	op, message string,
	fn func(context.Context, int64) (bool, error),
) {
	id, ok := pathID(r)
	if !ok {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if _, err := fn(r.Context(), id); err != nil {
		writeError(w, r, op, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.NewMessage(message))
}
