// Package apperr defines NetPulse's error taxonomy (spec §7). Probe-layer
// failures never use these types — they are recorded directly on the result
// struct and never propagate.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping and internal dispatch.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindAuth       Kind = "auth"
	KindStorage    Kind = "storage"
	KindProtocol   Kind = "protocol"
	KindFatal      Kind = "fatal"
)

// Error is a classified application error carrying a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error    { return newf(KindNotFound, format, args...) }
func Auth(format string, args ...any) *Error        { return newf(KindAuth, format, args...) }
func Fatal(format string, args ...any) *Error       { return newf(KindFatal, format, args...) }

// Storage wraps a lower-level error (typically from database/sql) as a
// StorageError, preserving it for errors.Is/As.
func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// Protocol wraps a malformed-input error (HTTP or SNMP parsing).
func Protocol(msg string, err error) *Error {
	return &Error{Kind: KindProtocol, Message: msg, Err: err}
}

// As is a thin convenience wrapper over errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
