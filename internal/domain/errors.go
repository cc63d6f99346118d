package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a required-field or invariant violation. The HTTP
// layer surfaces it as 400; everything else from a storage backend is a
// generic failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
