package sheet

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the request boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
)

// Status maps a Kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure with a message safe to show to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalid builds a KindInvalid error.
func Invalid(msg string, err error) *Error {
	return &Error{Kind: KindInvalid, Message: msg, Err: err}
}

// NotFound builds a KindNotFound error.
func NotFound(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

// KindOf returns the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
