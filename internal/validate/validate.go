package validate

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// TextCodeValidationFailed is set on every error produced by Check
const TextCodeValidationFailed = "VALIDATION_FAILED"

// Validatable is anything with ozzo style rules
type Validatable interface {
	Validate() error
}

// Check runs v.Validate and turns a failure into a go-errors validation error
// carrying a "fields" map of field name to message.
func Check(v Validatable, message string) error {
	if v == nil {
		return nil
	}
	return Wrap(v.Validate(), message)
}

// Wrap converts an ozzo validation result. Other errors pass through as
// internal errors since they mean a rule itself failed.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "validation rule failed")
	}

	fields := make(map[string]string, len(fieldErrs))
	for name, ferr := range fieldErrs {
		if ferr != nil {
			fields[name] = ferr.Error()
		}
	}

	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"fields": fields})
}

// Fields returns the field map attached by Wrap, if any
func Fields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	return fields
}
