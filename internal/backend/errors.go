package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorType categorizes client errors for handling
type ErrorType int

const (
	ErrTypeTransport ErrorType = iota
	ErrTypeTimeout
	ErrTypeUpstream
	ErrTypeMalformed
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeTransport:
		return "transport"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeUpstream:
		return "upstream"
	case ErrTypeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ClientError represents an error from the Ollama client
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int // set for ErrTypeUpstream
	Cause      error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// TypeOf returns the ErrorType carried by err, or ErrTypeTransport when err
// is not a ClientError.
func TypeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeTransport
}

// IsTimeout reports whether err was caused by a deadline
func IsTimeout(err error) bool {
	return TypeOf(err) == ErrTypeTimeout
}

// transportError classifies a failure from http.Client.Do or a body read
func transportError(msg string, err error) *ClientError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeTransport, Message: msg, Cause: err}
}
