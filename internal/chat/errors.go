package chat

import (
	"errors"

	"github.com/asedra/lonage-ai-platform/internal/backend"
)

// ErrValidation matches every *ValidationError via errors.Is
var ErrValidation = errors.New("message not sent")

// Reason says why a message was rejected before dispatch
type Reason int

const (
	ReasonNoModel Reason = iota + 1
	ReasonEmptyInput
	ReasonAwaiting
	ReasonInvalidModel
)

func (r Reason) String() string {
	switch r {
	case ReasonNoModel:
		return "no model selected"
	case ReasonEmptyInput:
		return "message is empty"
	case ReasonAwaiting:
		return "a reply is already pending"
	case ReasonInvalidModel:
		return "selected model is misconfigured"
	default:
		return "unknown reason"
	}
}

// ValidationError is returned when Send refuses a message. The session is
// left untouched.
type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Reason.String() + ": " + e.Err.Error()
	}
	return e.Reason.String()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

const (
	// NoticeFailed is shown when a reply could not be obtained
	NoticeFailed = "Sorry, the message could not be delivered. Please try again."
	// NoticeAuth is shown when the backend rejected the session token
	NoticeAuth = "Your session is missing or has expired. Please log in again."
)

// DispatchError is returned when the backend call fails. The user message
// stays in the transcript and no assistant message is added.
type DispatchError struct {
	Notice string
	Err    error
}

func (e *DispatchError) Error() string {
	return e.Notice + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func newDispatchError(err error) *DispatchError {
	notice := NoticeFailed
	if errors.Is(err, backend.ErrAuth) {
		notice = NoticeAuth
	}
	return &DispatchError{Notice: notice, Err: err}
}
