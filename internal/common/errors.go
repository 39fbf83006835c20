package common

import (
	"errors"
	"fmt"
)

// ErrorKind tags an error with its retry/propagation policy.
type ErrorKind string

const (
	// KindNotFound: a lookup by id/key matched nothing. Not retryable.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindValidation: the caller supplied bad input. Rejected before any side effect.
	KindValidation ErrorKind = "VALIDATION"
	// KindTransientBackend: network/timeout/rate-limit from an external backend.
	// Retryable a bounded number of times.
	KindTransientBackend ErrorKind = "TRANSIENT_BACKEND"
	// KindPermanentBackend: the backend answered but the answer is unusable
	// (e.g. schema-violating JSON). Retrying the same request is futile.
	KindPermanentBackend ErrorKind = "PERMANENT_BACKEND"
	// KindInternal: everything else.
	KindInternal ErrorKind = "INTERNAL"
)

// Error is the tagged error type crossing component boundaries.
type Error struct {
	Kind ErrorKind
	Op   string // component.operation, e.g. "repository.jobs.complete"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a tagged error.
func E(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf returns the kind of err, or KindInternal for untagged errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsTransient(err error) bool  { return KindOf(err) == KindTransientBackend }
func IsPermanent(err error) bool  { return KindOf(err) == KindPermanentBackend }

// WrapError adds message context while preserving the wrapped chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
