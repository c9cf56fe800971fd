package errs

import (
	"errors"
	"fmt"
)

// Kind classifies request failures that are safe to surface to clients.
type Kind int

const (
	// InvalidParameter marks a missing or malformed request field.
	InvalidParameter Kind = iota
	// InvalidClient marks an unknown client id or a secret mismatch.
	InvalidClient
	// InvalidGrant marks an expired, absent or already-consumed code or
	// token, or a credential mismatch on login.
	InvalidGrant
	// InvalidState marks an operation against a user whose state forbids it.
	InvalidState
	// InsufficientFunds marks a debit that would drive a balance negative.
	InsufficientFunds
)

var kindNames = map[Kind]string{
	InvalidParameter:  "invalid_parameter",
	InvalidClient:     "invalid_client",
	InvalidGrant:      "invalid_grant",
	InvalidState:      "invalid_state",
	InsufficientFunds: "insufficient_funds",
}

// Name returns the stable machine-readable name for the kind.
func (k Kind) Name() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "server_error"
}

// Status returns the HTTP status the kind maps to at the boundary.
func (k Kind) Status() int {
	if _, ok := kindNames[k]; ok {
		return 400
	}
	return 500
}

// Error is a tagged failure with an optional structured payload that is
// echoed back to the caller alongside the kind name.
type Error struct {
	Kind  Kind
	Msg   string
	Props map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.Name(), e.Msg)
}

// New builds a tagged error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds a tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// With attaches an extra property surfaced in the error response body.
func (e *Error) With(key string, value any) *Error {
	if e.Props == nil {
		e.Props = make(map[string]any)
	}
	e.Props[key] = value
	return e
}

// As unwraps err into *Error if it carries one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a tagged error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
