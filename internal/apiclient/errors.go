package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the class of a failed call. Callers branch on it instead of on
// raw transport errors.
type Kind int

const (
	// KindBusiness is a request the backend understood and refused, e.g.
	// "feature not available". Shown inline, never touches the session.
	KindBusiness Kind = iota
	// KindAuth means the credential itself is invalid or expired.
	KindAuth
	// KindTransport covers timeouts, refused connections, 5xx and an open
	// breaker. Retryable.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	default:
		return "business"
	}
}

type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsAuth reports whether err is an auth-class failure. Errors that did not
// come from the client are classified by their message.
func IsAuth(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindAuth
	}
	return IsAuthMessage(err.Error())
}

func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport
}

// IsAuthMessage matches the messages the backend uses for rejected
// credentials.
func IsAuthMessage(msg string) bool {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "unauthorized"),
		strings.Contains(m, "authentication required"),
		strings.Contains(m, "invalid token"):
		return true
	}
	return strings.Contains(m, "invalid") && strings.Contains(m, "token")
}
