// Package apperr defines the error taxonomy shared by the room, game and
// ledger layers. Every rejected operation carries a stable machine-checkable
// code and a human-readable message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how callers are expected to react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindStateConflict
	KindResource
	KindConcurrency
	KindNotFound
	KindForbidden
	KindUnauthenticated
)

// Error is a classified, user-visible failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same code, so wrapped copies compare
// equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus maps the error kind onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindStateConflict, KindResource:
		return http.StatusBadRequest
	case KindConcurrency:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	// Validation
	ErrInvalidStake    = newError(KindValidation, "invalid_stake", "bet amount is not allowed by the current bet settings")
	ErrInvalidAmount   = newError(KindValidation, "invalid_amount", "amount must be greater than 0")
	ErrGuessOutOfRange = newError(KindValidation, "guess_out_of_range", "guess must be between 1 and 100")
	ErrInvalidSettings = newError(KindValidation, "invalid_settings", "bet settings are invalid")
	ErrBadRequest      = newError(KindValidation, "bad_request", "malformed request")

	// State conflicts
	ErrRoomNotJoinable   = newError(KindStateConflict, "room_not_joinable", "room is not available for joining")
	ErrRoomFull          = newError(KindStateConflict, "room_full", "room is already full")
	ErrAlreadyJoined     = newError(KindStateConflict, "already_joined", "you are already in this room")
	ErrRoomNotFull       = newError(KindStateConflict, "room_not_full", "room must be full to start a game")
	ErrGameAlreadyExists = newError(KindStateConflict, "game_already_exists", "game already exists for this room")
	ErrGameNotInProgress = newError(KindStateConflict, "game_not_in_progress", "game is not in progress")
	ErrNotYourTurn       = newError(KindStateConflict, "not_your_turn", "it's not your turn")

	// Resource
	ErrInsufficientBalance = newError(KindResource, "insufficient_balance", "insufficient balance")

	// Concurrency
	ErrConflict = newError(KindConcurrency, "conflict", "concurrent update, please retry")

	// Lookup and access
	ErrRoomNotFound    = newError(KindNotFound, "room_not_found", "room not found")
	ErrGameNotFound    = newError(KindNotFound, "game_not_found", "game not found")
	ErrUserNotFound    = newError(KindNotFound, "user_not_found", "user not found")
	ErrNotParticipant  = newError(KindForbidden, "not_participant", "you are not a participant in this room")
	ErrForbidden       = newError(KindForbidden, "forbidden", "permission denied")
	ErrUnauthenticated = newError(KindUnauthenticated, "unauthenticated", "authentication required")

	ErrInternal = newError(KindInternal, "internal", "internal server error")
)

// Wrap returns a copy of sentinel with extra detail appended to the message.
func Wrap(sentinel *Error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: sentinel.Message + ": " + fmt.Sprintf(format, args...),
	}
}

// WithCause returns a copy of sentinel that records cause for logging.
func WithCause(sentinel *Error, cause error) *Error {
	return &Error{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		cause:   cause,
	}
}

// From classifies err. Unknown errors become ErrInternal with the original
// kept as cause, so store details never reach clients.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return WithCause(ErrInternal, err)
}

// Public returns the message safe to show to a client.
func Public(err error) (code, message string) {
	e := From(err)
	return e.Code, e.Message
}
