// Package apperr classifies failures of the delivery pipeline so that transport
// layers can map them to a status and a message that is safe to show callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// KindUnknown is reported for errors that were never classified.
	KindUnknown Kind = iota
	// KindValidation marks malformed or disallowed caller input.
	KindValidation
	// KindConfiguration marks missing operator configuration such as credentials.
	KindConfiguration
	// KindUpstream marks a failed call to storage, the video platform or the ledger.
	KindUpstream
	// KindTimeout marks an exhausted polling budget.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is public; Err is the internal cause and
// is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error with a formatted public message.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Configuration returns a KindConfiguration error. The message must not contain secret values.
func Configuration(message string) error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// Upstream wraps cause behind a generic public message.
func Upstream(message string, cause error) error {
	return &Error{Kind: KindUpstream, Message: message, Err: cause}
}

// Timeout wraps cause as an exhausted wait that callers may retry.
func Timeout(message string, cause error) error {
	return &Error{Kind: KindTimeout, Message: message, Err: cause}
}

// KindOf returns the kind of the first Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-facing message; unclassified errors collapse to fallback.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Retryable reports whether the caller can reasonably retry the same request.
func Retryable(err error) bool {
	return KindOf(err) == KindTimeout
}
