package identity

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeCancelled     Code = "CANCELLED"
	CodeSDKLoadFailed Code = "SDK_LOAD_FAILED"
	CodeAuthFailed    Code = "AUTH_FAILED"
	CodeConfigMissing Code = "CONFIG_MISSING"
)

// Error is the single failure type returned by adapters. Message is already
// localized and safe to show to the user.
type Error struct {
	Message  string
	Code     Code
	Provider Provider
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the *Error in err's chain, or "" when there is
// none.
func CodeOf(err error) Code {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return ""
}

// IsCancelled reports whether the user abandoned the sign-in. Callers usually
// stay silent in that case.
func IsCancelled(err error) bool {
	return CodeOf(err) == CodeCancelled
}

// providerError is an error parameter returned on the redirect URI.
type providerError struct {
	Code        string
	Description string
}

func (e *providerError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// cancelCodes are the error values providers use when the user closed or
// declined the consent screen.
var cancelCodes = map[string]bool{
	"access_denied":            true,
	"user_cancelled_authorize": true,
	"user_cancelled_login":     true,
	"user_cancelled":           true,
	"popup_closed_by_user":     true,
	"consent_required":         true,
}

// silentFailureCodes mean a prompt=none request needs the user to interact.
var silentFailureCodes = map[string]bool{
	"interaction_required":       true,
	"login_required":             true,
	"consent_required":           true,
	"account_selection_required": true,
}

func isCancelCode(code string) bool {
	return cancelCodes[code]
}

func isSilentFailure(err error) bool {
	var pe *providerError
	return errors.As(err, &pe) && silentFailureCodes[pe.Code]
}
