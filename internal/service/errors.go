package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Kind classifies the client-correctable outcomes of the booking core.
// Anything that is not an *Error is an infrastructure fault.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindSoldOut
	KindUnderage
	KindSessionInPast
	KindValidationFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindSoldOut:
		return "SoldOut"
	case KindUnderage:
		return "Underage"
	case KindSessionInPast:
		return "SessionInPast"
	case KindValidationFailed:
		return "ValidationFailed"
	}
	return "Internal"
}

// Machine-readable error codes returned to API clients.
const (
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeMovieNotFound     = "MOVIE_NOT_FOUND"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeRoomNotFound      = "ROOM_NOT_FOUND"
	CodeTicketNotFound    = "TICKET_NOT_FOUND"
	CodeSlotTaken         = "SLOT_TAKEN"
	CodeRoomNumberExists  = "ROOM_NUMBER_EXISTS"
	CodeSessionHasTickets = "SESSION_HAS_TICKETS"
	CodeTicketWatched     = "TICKET_ALREADY_WATCHED"
	CodeSoldOut           = "SOLD_OUT"
	CodeUnderage          = "UNDERAGE"
	CodeSessionInPast     = "SESSION_IN_PAST"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeCapacityBelowSold = "CAPACITY_BELOW_SOLD"
)

// Error is a typed business error.  Requested and Available are only set
// for KindSoldOut.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Requested int
	Available int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func validationError(msg string, err error) *Error {
	return &Error{Kind: KindValidationFailed, Code: CodeValidationFailed, Message: msg, Err: err}
}

// translate maps repository sentinels to typed errors.  Unknown errors are
// wrapped with op and returned as infrastructure faults.
func translate(op string, err error) error {
	var soldOut *repository.SoldOutError
	switch {
	case errors.As(err, &soldOut):
		return &Error{
			Kind:      KindSoldOut,
			Code:      CodeSoldOut,
			Message:   "not enough seats left",
			Requested: soldOut.Requested,
			Available: soldOut.Available,
		}
	case errors.Is(err, repository.ErrSessionNotFound):
		return newError(KindNotFound, CodeSessionNotFound, "session not found")
	case errors.Is(err, repository.ErrMovieNotFound):
		return newError(KindNotFound, CodeMovieNotFound, "movie not found")
	case errors.Is(err, repository.ErrUserNotFound):
		return newError(KindNotFound, CodeUserNotFound, "user not found")
	case errors.Is(err, repository.ErrRoomNotFound):
		return newError(KindNotFound, CodeRoomNotFound, "room not found")
	case errors.Is(err, repository.ErrTicketNotFound):
		return newError(KindNotFound, CodeTicketNotFound, "ticket not found")
	case errors.Is(err, repository.ErrSlotTaken):
		return newError(KindConflict, CodeSlotTaken, "time slot already taken for this room")
	case errors.Is(err, repository.ErrRoomNumberExists):
		return newError(KindConflict, CodeRoomNumberExists, "room number already exists")
	case errors.Is(err, repository.ErrSessionHasTickets):
		return newError(KindConflict, CodeSessionHasTickets, "session has sold tickets")
	case errors.Is(err, repository.ErrTicketAlreadyWatched):
		return newError(KindConflict, CodeTicketWatched, "ticket already used")
	case errors.Is(err, repository.ErrCapacityBelowSold):
		return &Error{Kind: KindValidationFailed, Code: CodeCapacityBelowSold, Message: "room capacity is below seats already sold"}
	}
	return fmt.Errorf("%s: %w", op, err)
}
