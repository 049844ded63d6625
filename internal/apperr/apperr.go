// Package apperr classifies failures so the transport layer can map them
// to caller-visible statuses without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	InvalidInput       Kind = "invalid-input"
	IllegalState       Kind = "illegal-state"
	InvalidAuth        Kind = "invalid-auth"
	ExpiredPermissions Kind = "expired-permissions"
	InvalidPermissions Kind = "invalid-permissions"
	Internal           Kind = "server"
)

type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// KindOf reports the classification of err, or Internal for
// unclassified failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
