package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// APIError is a failed API call. The server writes it with WriteError and
// the client decodes every non-2xx response into one.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Message is the generic, user-facing message
	Message string `json:"message"`

	// Details holds per-field validation messages, if any.
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Is matches another *APIError with the same status and message, so the
// predefined values work with errors.Is on the client side.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode && t.Message == e.Message
}

// WriteError writes the error as a MessageResponse with success=false.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="gatekeeper"`)
	}
	httpx.WriteJSON(w, e.StatusCode, errorBody{
		MessageResponse: MessageResponse{
			Message:   e.Message,
			Success:   false,
			Timestamp: time.Now().UTC(),
		},
		Details: e.Details,
	})
}

type errorBody struct {
	MessageResponse

	Details map[string]string `json:"details,omitempty"`
}

// Predefined errors. Messages are deliberately generic.
var (
	ErrInvalidRequest = &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Invalid request",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Invalid username or password",
	}

	ErrAccountLocked = &APIError{
		StatusCode: http.StatusLocked,
		Message:    "Account is locked due to multiple failed login attempts",
	}

	ErrAccountDisabled = &APIError{
		StatusCode: http.StatusForbidden,
		Message:    "Account is disabled",
	}

	ErrAccountExpired = &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Account has expired",
	}

	ErrCredentialsExpired = &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Credentials have expired",
	}

	ErrUnauthorized = &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Full authentication is required to access this resource",
	}

	ErrForbidden = &APIError{
		StatusCode: http.StatusForbidden,
		Message:    "Access denied",
	}

	ErrUserNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Message:    "User not found",
	}

	ErrUsernameTaken = &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Username is already taken!",
	}

	ErrEmailTaken = &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Email is already in use!",
	}

	ErrInvalidRole = &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Invalid role",
	}

	ErrWrongPassword = &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Current password is incorrect",
	}

	ErrMethodNotAllowed = &APIError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed",
	}

	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Message:    "Not found",
	}

	ErrConflict = &APIError{
		StatusCode: http.StatusConflict,
		Message:    "The account was modified concurrently, please retry",
	}

	ErrServerError = &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
	}
)

// ErrTwoFactorRequired is returned by Client.Signin when the account needs a
// second factor code. The accompanying SigninResponse is still populated.
var ErrTwoFactorRequired = errors.New("authsdk: two-factor code required")

// NewValidationError returns a 400 carrying per-field messages.
func NewValidationError(details map[string]string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Validation failed",
		Details:    details,
	}
}

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    eb.Message,
			Details:    eb.Details,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
