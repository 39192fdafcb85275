package omr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed run.
type ErrorKind int

const (
	// InputError means the image was missing or had no pixels.
	InputError ErrorKind = iota + 1
	// ConfigError means the configuration cannot describe a sheet.
	ConfigError
	// AlignmentError means the corner markers could not be found or did
	// not give an invertible transform.
	AlignmentError
)

// String returns the kind name used in tool output.
func (k ErrorKind) String() string {
	switch k {
	case InputError:
		return "InputError"
	case ConfigError:
		return "ConfigError"
	case AlignmentError:
		return "AlignmentError"
	default:
		return "UnknownError"
	}
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Sentinels for errors.Is.
var (
	ErrInput     = errors.New("input error")
	ErrConfig    = errors.New("config error")
	ErrAlignment = errors.New("alignment error")
)

// Error is the failure carried by a Result.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInput:
		return e.Kind == InputError
	case ErrConfig:
		return e.Kind == ConfigError
	case ErrAlignment:
		return e.Kind == AlignmentError
	}
	return false
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// NewInputError reports a sheet image that could not be read or decoded
// before the pipeline started.
func NewInputError(err error) *Error {
	return newError(InputError, err)
}
