package auth

import (
	"github.com/vocacrm/vocacrm-go/identity"
	"github.com/vocacrm/vocacrm-go/internal/errors"
)

const (
	backendUserNotFound      = "USER_NOT_FOUND"
	backendUserAlreadyExists = "USER_ALREADY_EXISTS"
)

var (
	ErrSignupRequired   = errors.ErrSignupRequired
	ErrNotAuthenticated = errors.ErrNotAuthenticated
	ErrInvalidSignup    = errors.ErrInvalidInput
	ErrTokenParseFailed = errors.ErrInvalidToken
)

// SignupRequiredError is returned by Login when the provider identity has no
// VocaCRM account yet. Result is what Signup needs to create one.
type SignupRequiredError struct {
	Result  *identity.Result
	Message string
}

func (e *SignupRequiredError) Error() string {
	return e.Message
}

func (e *SignupRequiredError) Is(target error) bool {
	return target == ErrSignupRequired
}

// IsSignupRequired returns the *SignupRequiredError in err's chain.
func IsSignupRequired(err error) (*SignupRequiredError, bool) {
	var signupErr *SignupRequiredError
	if errors.As(err, &signupErr) {
		return signupErr, true
	}
	return nil, false
}
