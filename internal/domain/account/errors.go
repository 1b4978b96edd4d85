package account

import (
	"errors"
	"fmt"
)

// Sentinel errors the handlers translate to HTTP statuses. Services return
// these wrapped with context; callers match with errors.Is.
var (
	// ErrEmailTaken reports a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidInput reports a malformed or policy-violating field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is returned for both unknown email and wrong
	// password so callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotActive reports a correct password against an account
	// that is not in active status.
	ErrAccountNotActive = errors.New("account not active")

	// ErrInvalidCode covers both verification-code and TOTP mismatches,
	// including missing and expired codes.
	ErrInvalidCode = errors.New("invalid code")

	// ErrNotFound reports a lookup miss by id.
	ErrNotFound = errors.New("account not found")
)

func invalidInput(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, reason)
}
