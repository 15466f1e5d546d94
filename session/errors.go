package session

import (
	"fmt"

	"github.com/vocacrm/vocacrm-go/internal/errors"
)

// ErrSessionExpired is matched by the *APIError returned when the
// credentials could not be refreshed and were cleared.
var ErrSessionExpired = errors.ErrSessionExpired

var errSessionChanged = fmt.Errorf("session changed during refresh: %w", errors.ErrNotAuthenticated)

// APIError is a failed backend call. Status is 0 when the request never got
// a response.
type APIError struct {
	Status  int
	Code    string // backend "error" field, e.g. USER_NOT_FOUND
	Message string // backend "message" field or a localized default
	Body    map[string]any
	cause   error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api request failed: %s: %v", e.Message, e.cause)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// IsSessionExpired reports whether err ended the session.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// StatusOf returns the HTTP status of the *APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// CodeOf returns the backend error code of the *APIError in err's chain.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
