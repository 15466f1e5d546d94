package auth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vocacrm/vocacrm-go/internal/errors"
)

// SignupParams registers a provider identity as a new VocaCRM user.
type SignupParams struct {
	Provider string `json:"provider" validate:"required,oneof=google.com kakao.com apple.com"`
	Token    string `json:"token" validate:"required"`
	Username string `json:"username" validate:"required,max=50"`
	Phone    string `json:"phone" validate:"required,phone"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// Anything shaped like a phone number: an optional leading +, digits and the
// usual separators. The backend owns the exact format.
var phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ().-]{5,18}[0-9]$`)

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return validate
}

// validateSignup reports every invalid field in one error wrapping
// ErrInvalidSignup.
func validateSignup(validate *validator.Validate, params SignupParams) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrapf(ErrInvalidSignup, "%v", err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errors.Wrapf(ErrInvalidSignup, "invalid fields: %s", strings.Join(fields, ", "))
}
