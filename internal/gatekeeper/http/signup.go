package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type SignupHandler struct {
	RegistrationService *service.RegistrationService
}

// ServeHTTP registers a new USER account.
//
//	@Summary		Sign up
//	@Description	Creates an enabled account with the USER role.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignupRequest	true	"New account"
//	@Success		200		{object}	authsdk.MessageResponse	"Account created"
//	@Failure		400		{object}	authsdk.MessageResponse	"Validation failed, username or email taken"
//	@Failure		429		{object}	authsdk.MessageResponse	"Rate limit exceeded"
//	@Router			/api/auth/public/signup [post].
func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if _, err := h.RegistrationService.Register(r.Context(), req); err != nil {
		writeError(w, r, "sign up", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.NewMessage("User registered successfully!"))
}

type ForgotPasswordHandler struct {
	ResetService *service.PasswordResetService
}

// ServeHTTP accepts a password reset request.
//
//	@Summary		Forgot password
//	@Description	Requests password reset instructions. The response is the same whether or not the email belongs to an account.
//	@Description	The email may be sent as a JSON body or as the email query parameter.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	false	"Email address"
//	@Param			email	query		string							false	"Email address"
//	@Success		200		{object}	authsdk.MessageResponse			"Generic acknowledgement"
//	@Failure		400		{object}	authsdk.MessageResponse			"No email supplied"
//	@Failure		429		{object}	authsdk.MessageResponse			"Rate limit exceeded"
//	@Router			/api/auth/public/forgot-password [post].
func (h *ForgotPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" && r.ContentLength != 0 {
		var req authsdk.ForgotPasswordRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
		email = req.Email
	}

	if msg := authsdk.ValidateEmail(email); msg != "" {
		authsdk.NewValidationError(map[string]string{"email": msg}).WriteError(w)
		return
	}

	h.ResetService.Request(r.Context(), email)
	httpx.WriteJSON(w, http.StatusOK, authsdk.NewMessage("If the email exists, password reset instructions have been sent"))
}
