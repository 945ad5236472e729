package core

import "github.com/pkg/errors"

// FieldError reports the problem with one input field, keyed by its json name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error: the request was understood but some of its values are rejected.
// Err, when set, is the domain error behind it (e.g. a duplicate email).
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (ve *ValidationError) Error() string {
	switch {
	case ve.Err != nil:
		return ve.Err.Error()
	case len(ve.Fields) > 0:
		return ve.Fields[0].Field + ": " + ve.Fields[0].Error
	}
	return "invalid input"
}

func (ve *ValidationError) Unwrap() error { return ve.Err }

// integrityError marks a store state the app must not keep serving from.
type integrityError struct {
	message string
}

// NewShutdownError reports a broken store invariant. The API stops gracefully when one reaches it.
func NewShutdownError(msg string) error {
	return &integrityError{message: msg}
}

func (ie *integrityError) Error() string { return ie.message }

func IsShutdown(err error) bool {
	var ie *integrityError
	return errors.As(err, &ie)
}
