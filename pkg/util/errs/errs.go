// Package errs provides error helpers shared across the proxy.
package errs

import (
	"errors"
	"fmt"
)

// ErrMissingConfig indicates a component was created without its config.
var ErrMissingConfig = errors.New("config is missing")

// SilentError is an error wrapper type that silences an
// error and only logs it in the debug log.
//
// It is usually used for user-facing disconnect diagnostics that
// should not spam the default log.
type SilentError struct{ error }

func (e *SilentError) Error() string {
	return e.error.Error()
}

func NewSilentErr(format string, a ...any) error {
	return &SilentError{fmt.Errorf(format, a...)}
}

func WrapSilent(wrappedErr error) error {
	return &SilentError{wrappedErr}
}

func (e *SilentError) Unwrap() error { return e.error }
