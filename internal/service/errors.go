package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindAuthorization
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	}
	return "internal"
}

// Error is the typed error returned by every core operation. Message is safe
// to show to clients; Err carries the underlying cause for logs.
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

// Is matches another *Error of the same kind and message, so the auth
// sentinels below work with errors.Is even after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Access gate failures.
var (
	ErrMissingCredential           = &Error{Kind: KindAuth, Message: "missing credential"}
	ErrInvalidCredential           = &Error{Kind: KindAuth, Message: "invalid credential"}
	ErrExpiredCredential           = &Error{Kind: KindAuth, Message: "expired credential"}
	ErrPrincipalInactiveOrNotFound = &Error{Kind: KindAuth, Message: "principal inactive or not found"}
)

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// storageErr wraps a persistence failure at the operation boundary. The
// message stays generic; the cause is kept for logging.
func storageErr(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op + " failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
