package domain

import (
	"errors"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

const authorityPrefix = "ROLE_"

// ErrUnknownRole is returned by ParseRole.
var ErrUnknownRole = errors.New("domain: unknown role")

// ParseRole accepts "USER", "ROLE_USER", "admin" and so on.
func ParseRole(s string) (Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, authorityPrefix)

	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	}
	return "", ErrUnknownRole
}

// Authority returns the granted-authority form, e.g. "ROLE_ADMIN".
func (r Role) Authority() string { return authorityPrefix + string(r) }

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

func (r Role) String() string { return string(r) }
