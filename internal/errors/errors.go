// Package errors defines the error kinds azdo-lens reports to its callers.
//
// Configuration errors (missing credentials, unsupported modes or combinations, invalid settings) are
// returned before anything touches the network. Credential acquisition and query execution errors are
// scoped to a single request.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindMissingCredential      Kind = "missing_credential"
	KindUnsupportedAuthMode    Kind = "unsupported_auth_mode"
	KindUnsupportedCombination Kind = "unsupported_combination"
	KindInvalidSetting         Kind = "invalid_setting"
	KindCredentialAcquisition  Kind = "credential_acquisition"
	KindQueryExecution         Kind = "query_execution"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrMissingCredential      = &Error{Kind: KindMissingCredential}
	ErrUnsupportedAuthMode    = &Error{Kind: KindUnsupportedAuthMode}
	ErrUnsupportedCombination = &Error{Kind: KindUnsupportedCombination}
	ErrInvalidSetting         = &Error{Kind: KindInvalidSetting}
	ErrCredentialAcquisition  = &Error{Kind: KindCredentialAcquisition}
	ErrQueryExecution         = &Error{Kind: KindQueryExecution}
)

// Error is an azdo-lens error with a kind, a message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func MissingCredential(format string, args ...any) *Error {
	return New(KindMissingCredential, fmt.Sprintf(format, args...), nil)
}

func UnsupportedAuthMode(format string, args ...any) *Error {
	return New(KindUnsupportedAuthMode, fmt.Sprintf(format, args...), nil)
}

func UnsupportedCombination(format string, args ...any) *Error {
	return New(KindUnsupportedCombination, fmt.Sprintf(format, args...), nil)
}

func InvalidSetting(format string, args ...any) *Error {
	return New(KindInvalidSetting, fmt.Sprintf(format, args...), nil)
}

// CredentialAcquisition wraps a failure to obtain a token from an identity provider.
func CredentialAcquisition(cause error) *Error {
	return New(KindCredentialAcquisition, "acquire access token", cause)
}

// QueryExecution wraps a transport or server failure of a query call.
func QueryExecution(message string, cause error) *Error {
	return New(KindQueryExecution, message, cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConfiguration reports whether err was raised while resolving configuration.
func IsConfiguration(err error) bool {
	switch KindOf(err) {
	case KindMissingCredential, KindUnsupportedAuthMode, KindUnsupportedCombination, KindInvalidSetting:
		return true
	default:
		return false
	}
}
