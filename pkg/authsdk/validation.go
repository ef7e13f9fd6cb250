package authsdk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const requiredReason = "required"

var (
	reUsername = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	reEmail    = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})$`)
)

// Validate checks the sign-up fields. Returns a map of field names to error
// messages, or nil if all fields are valid.
func (r SignupRequest) Validate() map[string]string {
	errs := make(map[string]string)

	if msg := ValidateUsername(r.Username); msg != "" {
		errs["username"] = msg
	}
	if msg := ValidateEmail(r.Email); msg != "" {
		errs["email"] = msg
	}
	if msg := ValidatePassword(r.Password); msg != "" {
		errs["password"] = msg
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Validate checks the password change fields.
func (r ChangePasswordRequest) Validate() map[string]string {
	errs := make(map[string]string)

	if r.CurrentPassword == "" {
		errs["currentPassword"] = requiredReason
	}
	if msg := ValidatePassword(r.NewPassword); msg != "" {
		errs["newPassword"] = msg
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateUsername returns an empty string for a valid username.
func ValidateUsername(username string) string {
	switch n := utf8.RuneCountInString(username); {
	case strings.TrimSpace(username) == "":
		return requiredReason
	case n < 3 || n > 20:
		return "must be 3-20 characters"
	case !reUsername.MatchString(username):
		return "must only contain a-z, A-Z, 0-9, _, . or -"
	}
	return ""
}

// ValidateEmail returns an empty string for a valid email address.
func ValidateEmail(email string) string {
	switch {
	case strings.TrimSpace(email) == "":
		return requiredReason
	case len(email) > 50:
		return "must not exceed 50 characters"
	case !reEmail.MatchString(email):
		return "must be a valid email address"
	}
	return ""
}

// ValidatePassword returns an empty string for an acceptable password.
func ValidatePassword(password string) string {
	switch n := utf8.RuneCountInString(password); {
	case password == "":
		return requiredReason
	case n < 6 || n > 40:
		return "must be 6-40 characters"
	}
	return ""
}
