// Package apperrors defines the error kinds returned by the settlement and
// registry services. Handlers map a Kind to an HTTP status and show Message
// to the caller verbatim.
package apperrors

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidRequest     Kind = "invalid_request"
	KindInvalidState       Kind = "invalid_state"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindDuplicatePeriod    Kind = "duplicate_period"
	KindAlreadyDistributed Kind = "already_distributed"
	KindNoRecipients       Kind = "no_recipients"
	KindDuplicate          Kind = "duplicate"
	KindConflict           Kind = "conflict"
	KindStoreFailure       Kind = "store_failure"
)

// Error carries a Kind, a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrDuplicatePeriod    = &Error{Kind: KindDuplicatePeriod, Message: "duplicate period"}
	ErrAlreadyDistributed = &Error{Kind: KindAlreadyDistributed, Message: "already distributed"}
	ErrNoRecipients       = &Error{Kind: KindNoRecipients, Message: "no recipients"}
	ErrDuplicate          = &Error{Kind: KindDuplicate, Message: "duplicate"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "concurrent update conflict"}
	ErrStoreFailure       = &Error{Kind: KindStoreFailure, Message: "store failure"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NotFound(message string) *Error          { return New(KindNotFound, message) }
func InvalidRequest(message string) *Error    { return New(KindInvalidRequest, message) }
func InvalidState(message string) *Error      { return New(KindInvalidState, message) }
func InsufficientFunds(message string) *Error { return New(KindInsufficientFunds, message) }
func DuplicatePeriod(message string) *Error   { return New(KindDuplicatePeriod, message) }
func AlreadyDistributed(message string) *Error {
	return New(KindAlreadyDistributed, message)
}
func NoRecipients(message string) *Error { return New(KindNoRecipients, message) }
func Duplicate(message string) *Error    { return New(KindDuplicate, message) }

// Conflict reports a lost optimistic-concurrency race.
func Conflict(err error) *Error {
	return &Error{Kind: KindConflict, Message: "The record was changed by another request, please retry", Err: err}
}

// Store wraps a persistence error behind a generic message.
func Store(message string, err error) *Error {
	return &Error{Kind: KindStoreFailure, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindStoreFailure for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreFailure
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal Server Error"
}

// HTTPStatus maps an error to the status code the handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindInvalidState, KindInsufficientFunds, KindNoRecipients:
		return http.StatusUnprocessableEntity
	case KindDuplicatePeriod, KindAlreadyDistributed, KindDuplicate, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
