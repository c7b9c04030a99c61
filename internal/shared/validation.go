package shared

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator configured for input structs.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// WrapValidation converts a validator error into a ValidationError with one
// issue per failed field. Non-validator errors pass through unchanged.
func WrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issue := strings.ToLower(fe.Field()) + ": " + fe.Tag()
		if fe.Param() != "" {
			issue += "=" + fe.Param()
		}
		issues = append(issues, issue)
	}
	return &ValidationError{Issues: issues}
}
