// Package apperr defines the error taxonomy shared by stores, services and
// HTTP handlers. Guard violations (duplicate keys, illegal transitions) are
// resolved into one of these kinds and returned as values, never panics.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindUnexpected Kind = iota // storage/gateway transient failure
	KindNotFound               // resource absent
	KindBadRequest             // malformed input, unverifiable signature
	KindConflict               // key reuse, in-flight duplicate, illegal transition
)

// Error carries a kind and a stable machine-readable code alongside the message.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error from a kind, code and optional cause.
func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func NotFound(code string) *Error            { return New(KindNotFound, code, nil) }
func BadRequest(code string, err error) *Error { return New(KindBadRequest, code, err) }
func Conflict(code string) *Error            { return New(KindConflict, code, nil) }
func Unexpected(code string, err error) *Error { return New(KindUnexpected, code, err) }

// KindOf extracts the kind of err, defaulting to KindUnexpected.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// CodeOf extracts the machine-readable code, defaulting to "internal_error".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "internal_error"
}

// HTTPStatus maps an error to the status code handlers should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
