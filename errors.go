package main

import (
	"errors"
	"fmt"
)

// ErrorKind is a machine-readable failure category.
type ErrorKind string

const (
	KindSourceUnavailable   ErrorKind = "source_unavailable"
	KindQueryFailure        ErrorKind = "query_failure"
	KindInvalidConfig       ErrorKind = "invalid_config"
	KindInvalidPayload      ErrorKind = "invalid_payload"
	KindTargetUnavailable   ErrorKind = "target_unavailable"
	KindWriteFailure        ErrorKind = "write_failure"
	KindVerificationFailure ErrorKind = "verification_failure"
)

// MigrationError wraps an underlying error with its kind and a human-readable message.
type MigrationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *MigrationError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *MigrationError {
	return &MigrationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *MigrationError {
	return &MigrationError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first MigrationError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsKind reports whether any MigrationError in err's tree has the given kind.
// Joined errors are searched as well.
func IsKind(err error, kind ErrorKind) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *MigrationError:
		if e.Kind == kind {
			return true
		}
		return IsKind(e.Err, kind)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(e.Unwrap(), kind)
	}
	return false
}

// describeFailure maps an error to the line printed for the user.
func describeFailure(err error) string {
	switch {
	case IsKind(err, KindInvalidConfig):
		return "invalid configuration"
	case IsKind(err, KindSourceUnavailable), IsKind(err, KindQueryFailure):
		return "failed to read source"
	case IsKind(err, KindInvalidPayload):
		return "refusing to load an invalid payload"
	case IsKind(err, KindTargetUnavailable), IsKind(err, KindWriteFailure):
		return "failed to write target"
	case IsKind(err, KindVerificationFailure):
		return "write succeeded but count mismatched"
	default:
		return "migration failed"
	}
}
