package jwtx

import "errors"

// Verification failures. Every error returned by Verify matches exactly one
// of these with errors.Is.
var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrBadSignature = errors.New("jwtx: invalid signature")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrUnsupported  = errors.New("jwtx: unsupported algorithm")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
)

// ErrWeakSecret is returned by NewHS256 for secrets shorter than MinSecretSize.
var ErrWeakSecret = errors.New("jwtx: secret too short")
