// Package apperr carries the error taxonomy the HTTP layer maps to status
// codes. Services wrap storage and downstream failures into one of these
// kinds; handlers never inspect raw errors.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Unknown is any error that was not classified; treated as internal.
	Unknown Kind = iota
	// Unauthorized: bad or missing caller credential.
	Unauthorized
	// Forbidden: feature disabled or wrong role.
	Forbidden
	// NotFound: event, cluster or job missing.
	NotFound
	// Conflict: duplicate in-flight job.
	Conflict
	// Invalid: malformed request.
	Invalid
	// Downstream: signed-URL issuance or worker dispatch failed.
	Downstream
	// Persistence: storage write failed.
	Persistence
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or Unknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is lets errors.Is match on kind sentinels created with New.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}
