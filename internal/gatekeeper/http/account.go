package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/authn"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type UserHandler struct {
	AccountService *service.AccountService
}

// ServeHTTP returns the caller's own account.
//
//	@Summary		Current user
//	@Description	Returns the authenticated caller's account details.
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"Account details"
//	@Failure		401	{object}	authsdk.MessageResponse		"Not authenticated"
//	@Failure		500	{object}	authsdk.MessageResponse		"Internal server error"
//	@Router			/api/auth/user [get].
func (h *UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := authn.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	a, err := h.AccountService.Profile(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, "load profile", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userInfo(a, time.Now()))
}

// UsernameHandler godoc
//
//	@Summary		Current username
//	@Description	Returns the caller's username, or an empty string for anonymous callers.
//	@Tags			Account
//	@Produce		json
//	@Success		200	{object}	authsdk.UsernameResponse	"username"
//	@Router			/api/auth/username [get].
func UsernameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := authn.PrincipalFromContext(r.Context())
		httpx.WriteJSON(w, http.StatusOK, authsdk.UsernameResponse{Username: p.Username})
	}
}

type ChangePasswordHandler struct {
	AccountService *service.AccountService
}

// ServeHTTP changes the caller's password.
//
//	@Summary		Change password
//	@Description	Replaces the caller's password after checking the current one. Renews the credentials expiry.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	authsdk.MessageResponse			"Password changed"
//	@Failure		400		{object}	authsdk.MessageResponse			"Validation failed or current password incorrect"
//	@Failure		401		{object}	authsdk.MessageResponse			"Not authenticated"
//	@Failure		429		{object}	authsdk.MessageResponse			"Rate limit exceeded"
//	@Router			/api/auth/change-password [post].
func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := authn.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.AccountService.ChangePassword(r.Context(), p.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, "change password", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.NewMessage("Password changed successfully"))
}

// LogoutHandler godoc
//
//	@Summary		Log out
//	@Description	Expires the session cookie. Bearer tokens stay valid until they expire.
//	@Tags			Account
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse	"Logged out"
//	@Router			/api/auth/logout [post].
func LogoutHandler(cookieName string, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
		httpx.WriteJSON(w, http.StatusOK, authsdk.NewMessage("Logged out successfully"))
	}
}
