package chatbot

import (
	"errors"

	"LocalChat/internal/backend"
)

// Kind classifies why a submit did not produce a clean reply
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindBusy
	KindTimeout
	KindTransport
	KindUpstream
	KindMalformedResponse
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindBusy:
		return "busy"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindUpstream:
		return "upstream"
	case KindMalformedResponse:
		return "malformed_response"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// UserVisible reports whether errors of this kind should be shown to the user.
// Empty input and busy rejections are handled locally.
func (k Kind) UserVisible() bool {
	return k != KindInvalidInput && k != KindBusy
}

// SubmitError is returned by Submit and by Pending.Wait
type SubmitError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from err. ok is false when err is not a SubmitError.
func KindOf(err error) (kind Kind, ok bool) {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

func inferenceError(err error) *SubmitError {
	switch backend.TypeOf(err) {
	case backend.ErrTypeTimeout:
		return &SubmitError{Kind: KindTimeout, Message: "the model did not answer in time", Err: err}
	case backend.ErrTypeUpstream:
		return &SubmitError{Kind: KindUpstream, Message: "the inference server rejected the request", Err: err}
	case backend.ErrTypeMalformed:
		return &SubmitError{Kind: KindMalformedResponse, Message: "the inference server sent an unreadable response", Err: err}
	default:
		return &SubmitError{Kind: KindTransport, Message: "could not reach the inference server", Err: err}
	}
}
