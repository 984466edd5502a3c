// Package apierr defines the error taxonomy surfaced by the voiceprint client.
//
// Every failure returned to callers is an *Error carrying a Kind. Callers match
// kinds with errors.Is against the sentinels below and show Error() verbatim:
// it is the human-readable message, e.g. the server's msg field.
package apierr

import (
	"errors"
)

// Kind classifies a failure.
type Kind string

// Failure kinds.
const (
	KindAuthentication Kind = "authentication"
	KindTransport      Kind = "transport"
	KindServer         Kind = "server"
	KindParse          Kind = "parse"
	KindInvalid        Kind = "invalid_argument"
)

// Sentinels matched through (*Error).Is.
var (
	ErrAuthentication  = errors.New("authentication required")
	ErrTransport       = errors.New("transport failure")
	ErrServer          = errors.New("server rejected request")
	ErrParse           = errors.New("malformed response")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Default user-facing messages.
const (
	MsgNotLoggedIn   = "not logged in, please log in first"
	MsgUploadFailed  = "upload failed"
	MsgParseFailed   = "failed to parse response"
	MsgRequestFailed = "request failed"
)

// Error is a classified client failure.
type Error struct {
	Op      string // operation that failed, e.g. "voiceprint.upload_audio"
	Kind    Kind
	Message string // shown to the user as is
	Code    int    // envelope code for KindServer, 0 otherwise
	Status  int    // HTTP status when one was received
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return sentinel(e.Kind).Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindAuthentication:
		return ErrAuthentication
	case KindTransport:
		return ErrTransport
	case KindServer:
		return ErrServer
	case KindParse:
		return ErrParse
	case KindInvalid:
		return ErrInvalidArgument
	}
	return errors.New(string(k))
}

// New builds an error of the given kind.
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(op string, kind Kind, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// Server builds a KindServer error from an envelope code and message.
func Server(op string, status, code int, message string) *Error {
	if message == "" {
		message = MsgRequestFailed
	}
	return &Error{Op: op, Kind: KindServer, Message: message, Code: code, Status: status}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
