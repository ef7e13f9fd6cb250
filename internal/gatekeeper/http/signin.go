package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type SigninHandler struct {
	LoginService *service.LoginService
	CookieName   string
	SecureCookie bool
}

// ServeHTTP handles username and password sign-in.
//
//	@Summary		Sign in
//	@Description	Authenticates with username and password and issues a session token, returned in the body and as the HTTP-only jwtToken cookie.
//	@Description	Five consecutive failures lock the account. Accounts with a second factor get twoFactorRequired until a code is supplied.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SigninRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.SigninResponse	"Session token, or twoFactorRequired"
//	@Failure		400		{object}	authsdk.MessageResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.MessageResponse	"Invalid credentials, account or credentials expired"
//	@Failure		403		{object}	authsdk.MessageResponse	"Account disabled"
//	@Failure		423		{object}	authsdk.MessageResponse	"Account locked"
//	@Failure		429		{object}	authsdk.MessageResponse	"Rate limit exceeded"
//	@Router			/api/auth/public/signin [post].
func (h *SigninHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SigninRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.Username) == "" {
		fields["username"] = "required"
	}
	if req.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		authsdk.NewValidationError(fields).WriteError(w)
		return
	}

	res, err := h.LoginService.Login(r.Context(), service.Credentials{
		Username:   req.Username,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Code:       req.Code,
	})
	if err != nil {
		writeError(w, r, "sign in", err)
		return
	}

	a := res.Account
	response := authsdk.SigninResponse{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Roles:    []string{a.Role.Authority()},
	}

	if res.TwoFactorRequired {
		response.TwoFactorRequired = true
		httpx.WriteJSON(w, http.StatusOK, response)
		return
	}

	expiresAt := res.ExpiresAt.UTC()
	response.JWTToken = res.Token
	response.TokenType = "Bearer"
	response.ExpiresAt = &expiresAt

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   max(int(res.TTL.Seconds()), 1),
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, response)
}
