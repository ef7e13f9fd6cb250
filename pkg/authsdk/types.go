package authsdk

import "time"

// MessageResponse is the envelope for every plain success or failure.
type MessageResponse struct {
	Message   string    `json:"message"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage returns a successful MessageResponse stamped now.
func NewMessage(msg string) MessageResponse {
	return MessageResponse{Message: msg, Success: true, Timestamp: time.Now().UTC()}
}

// SigninRequest is the body of POST /api/auth/public/signin.
type SigninRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`

	// Code is the TOTP code for accounts with a second factor.
	Code string `json:"code,omitempty"`
}

// SigninResponse is returned on successful sign-in, or with
// TwoFactorRequired set and no token when a code is still needed.
type SigninResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`

	JWTToken          string     `json:"jwtToken,omitempty"`
	TokenType         string     `json:"tokenType,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	TwoFactorRequired bool       `json:"twoFactorRequired"`
}

// SignupRequest is the body of POST /api/auth/public/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest is the body of POST /api/auth/public/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UsernameResponse is returned by GET /api/auth/username. Username is empty
// for anonymous callers.
type UsernameResponse struct {
	Username string `json:"username"`
}

// UserInfoResponse describes an account. Used for the caller's own profile
// and for the admin views.
type UserInfoResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`

	AccountNonLocked      bool `json:"accountNonLocked"`
	AccountNonExpired     bool `json:"accountNonExpired"`
	CredentialsNonExpired bool `json:"credentialsNonExpired"`
	Enabled               bool `json:"enabled"`

	// Calendar dates, YYYY-MM-DD.
	CredentialsExpiryDate string `json:"credentialsExpiryDate,omitempty"`
	AccountExpiryDate     string `json:"accountExpiryDate,omitempty"`

	TwoFactorEnabled    bool       `json:"twoFactorEnabled"`
	SignUpMethod        string     `json:"signUpMethod,omitempty"`
	FailedLoginAttempts int        `json:"failedLoginAttempts"`
	LockTime            *time.Time `json:"lockTime,omitempty"`
	LastLoginDate       *time.Time `json:"lastLoginDate,omitempty"`
	CreatedDate         time.Time  `json:"createdDate"`
}

// BulkResponse reports a bulk admin operation. Failed accounts were skipped
// and the rest of the batch still ran.
type BulkResponse struct {
	MessageResponse

	Matched int `json:"matched"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
