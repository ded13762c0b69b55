package utils

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest = fmt.Errorf("Bad request")
	ErrNotFound   = fmt.Errorf("Not found")
	ErrParse      = fmt.Errorf("Parse error")
	ErrExists     = fmt.Errorf("Already exists")
)

// An error that carries additional diagnostic text, e.g. the offending
// record or the output of a failed command.
type DetailedError interface {
	error
	Details() string
}

type detailedError struct {
	err     error
	details string
}

// Wrap err with diagnostic details.
func NewDetailedError(err error, details string) error {
	return &detailedError{err: err, details: details}
}

func (e *detailedError) Error() string {
	return e.err.Error()
}

func (e *detailedError) Details() string {
	return e.details
}

func (e *detailedError) Unwrap() error {
	return e.err
}

// Returns the details of the first DetailedError in the chain, if any.
func ErrorDetails(err error) (string, bool) {
	var detailed DetailedError
	if errors.As(err, &detailed) {
		return detailed.Details(), true
	}
	return "", false
}
