package core

import "github.com/pkg/errors"

type (
	// FieldError attaches a message to the struct field that caused it.
	FieldError struct {
		Field string
		Error string
	}

	// ValidationError carries per-field errors on top of an underlying cause,
	// for failures the validator tags cannot express (email uniqueness).
	ValidationError struct {
		Err    error
		Fields []FieldError
	}
)

func NewValidationError(err error, fields ...FieldError) error {
	return &ValidationError{Err: err, Fields: fields}
}

func (e ValidationError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// shutdown marks an error as unrecoverable: the process should stop serving.
type shutdown struct {
	msg string
}

func NewShutdownError(msg string) error {
	return &shutdown{msg: msg}
}

func (e shutdown) Error() string { return e.msg }

// IsShutdown reports whether err, at its cause, asks for a graceful shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
