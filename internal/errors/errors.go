package errors

import (
	"errors"
	"fmt"
)

// Common error types for the VocaCRM client
var (
	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrPartialPair  = errors.New("token pair is incomplete")

	// Session errors
	ErrSessionExpired   = errors.New("session expired")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Identity errors
	ErrSignupRequired      = errors.New("signup required")
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// Tenant errors
	ErrTenantNotFound = errors.New("tenant not found")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
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
