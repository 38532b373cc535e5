package errors

import (
	"errors"
	"fmt"
)

// Common error types for the storefront client
var (
	// Session errors
	ErrNotSignedIn      = errors.New("not signed in")
	ErrNoToken          = errors.New("no persisted token")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMissingToken     = errors.New("response did not contain an access token")
	ErrChallengeMissing = errors.New("two-factor challenge token missing")

	// Input errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidQuantity = errors.New("invalid quantity")

	// Storage errors
	ErrStoreUnavailable = errors.New("token store unavailable")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
