package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned when no token is available, the token is expired,
	// or the backend answers 401/403.
	ErrAuth = errors.New("backend rejected credentials")

	// ErrNetwork is returned for transport failures, other non-2xx
	// statuses and unusable response bodies.
	ErrNetwork = errors.New("backend request failed")
)

// Error describes a failed backend call. Kind is ErrAuth or ErrNetwork.
type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

func authError(op string, status int, detail string, err error) *Error {
	return &Error{Kind: ErrAuth, Op: op, StatusCode: status, Detail: detail, Err: err}
}

func networkError(op string, status int, detail string, err error) *Error {
	return &Error{Kind: ErrNetwork, Op: op, StatusCode: status, Detail: detail, Err: err}
}
