// Package errs defines the error kinds surfaced by campusbot operations.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	// KindConfiguration: a required credential or endpoint is missing or invalid.
	KindConfiguration Kind = "configuration"
	// KindUpstreamGeneration: the generation service failed or returned an unusable body.
	KindUpstreamGeneration Kind = "upstream_generation"
	// KindUpstreamStore: a knowledge or telemetry store call failed.
	KindUpstreamStore Kind = "upstream_store"
	// KindValidation: input is outside documented bounds.
	KindValidation Kind = "validation"
)

// Error is a typed failure carrying the operation that produced it.
// Status and Message are populated for upstream failures that report them.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Configuration returns a KindConfiguration error.
func Configuration(op, message string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// Validation returns a KindValidation error.
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// Store wraps a store failure. Returns nil when err is nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindUpstreamStore, Op: op, Err: err}
}

// Generation returns a KindUpstreamGeneration error with the upstream status and message.
func Generation(op string, status int, message string, err error) *Error {
	return &Error{Kind: KindUpstreamGeneration, Op: op, Status: status, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
