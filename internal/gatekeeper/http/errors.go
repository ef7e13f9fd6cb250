package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// apiError maps a service or store error to the response written for it.
// Unrecognised errors become ErrServerError.
func apiError(err error) *authsdk.APIError {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return authsdk.NewValidationError(verr.Fields)
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrAccountLocked):
		return authsdk.ErrAccountLocked
	case errors.Is(err, service.ErrAccountDisabled):
		return authsdk.ErrAccountDisabled
	case errors.Is(err, service.ErrAccountExpired):
		return authsdk.ErrAccountExpired
	case errors.Is(err, service.ErrCredentialsExpired):
		return authsdk.ErrCredentialsExpired
	case errors.Is(err, service.ErrUsernameTaken):
		return authsdk.ErrUsernameTaken
	case errors.Is(err, service.ErrEmailTaken):
		return authsdk.ErrEmailTaken
	case errors.Is(err, service.ErrWrongPassword):
		return authsdk.ErrWrongPassword
	case errors.Is(err, service.ErrInvalidRole):
		return authsdk.ErrInvalidRole
	case errors.Is(err, service.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return authsdk.ErrUserNotFound
	case errors.Is(err, store.ErrConflict):
		return authsdk.ErrConflict
	case errors.Is(err, httpx.ErrInvalidBody):
		return authsdk.ErrInvalidRequest
	}
	return authsdk.ErrServerError
}

// writeError writes the mapped response for err. Server errors are logged
// with their cause; nothing of it reaches the body.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	apiErr := apiError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error(op+" failed", slog.Any("error", err))
	}
	apiErr.WriteError(w)
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when it is absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
