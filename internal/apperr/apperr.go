// Package apperr classifies domain errors into the categories the HTTP layer
// and callers care about: what was the client's fault, what is missing, what
// conflicts with current state, what smells like forgery, and what is worth
// retrying.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindValidation marks malformed or missing request data, rejected before
	// any transaction begins.
	KindValidation Kind = iota
	// KindNotFound marks a referenced order, voucher, product or variant that
	// does not exist.
	KindNotFound
	// KindConflict marks stock/voucher exhaustion and illegal state
	// transitions. Retrying with the same input fails deterministically.
	KindConflict
	// KindSignature marks a payment callback that failed verification. Logged
	// as a security event, never detailed back to the caller.
	KindSignature
	// KindTransient marks persistence or connectivity failures. The whole
	// operation is atomic, so a retry is safe.
	KindTransient
)

type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: errors.New(msg)}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, err: fmt.Errorf(format, args...)}
}

func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

// KindOf reports the classification of err. Unclassified errors are treated
// as transient: the safe default for anything unexpected inside a transaction
// that has already been rolled back.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return KindTransient
}

func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.kind == kind
}
