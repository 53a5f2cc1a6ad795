package model

import (
	"errors"
	"time"
)

// Session represents one scheduled screening of a movie in a room.  At most
// one session may occupy a given (RoomID, Date, Slot) tuple.
//
// Fields:
//
//	ID        – primary key identifier.
//	MovieID   – movie being screened.
//	RoomID    – room hosting the screening.
//	Date      – calendar date at midnight UTC.
//	Slot      – time slot within Date.
//	SoldSeats – seats admitted so far; never exceeds the room capacity.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Session struct {
	ID        uint64    `json:"id"`         // sessions.id
	MovieID   uint64    `json:"movie_id"`   // sessions.movie_id
	RoomID    uint64    `json:"room_id"`    // sessions.room_id
	Date      time.Time `json:"date"`       // sessions.session_date
	Slot      TimeSlot  `json:"time_slot"`  // sessions.time_slot
	SoldSeats uint32    `json:"sold_seats"` // sessions.sold_seats
	CreatedAt time.Time `json:"created_at"` // sessions.created_at
	UpdatedAt time.Time `json:"updated_at"` // sessions.updated_at
}

// ErrInvalidReference is returned when a required foreign id is zero.
var ErrInvalidReference = errors.New("invalid reference")

// NewSession builds a session that has not been stored yet.  The date is
// normalized to midnight and the slot must be one of the enumerated
// intervals.  Rows read back from storage are scanned directly instead.
func NewSession(movieID, roomID uint64, date time.Time, slot TimeSlot) (Session, error) {
	if movieID == 0 || roomID == 0 {
		return Session{}, ErrInvalidReference
	}
	if !slot.Valid() {
		return Session{}, ErrInvalidTimeSlot
	}
	return Session{
		MovieID: movieID,
		RoomID:  roomID,
		Date:    NormalizeDate(date),
		Slot:    slot,
	}, nil
}

// StartsAt is the instant the screening begins.
func (s Session) StartsAt() time.Time {
	return s.Date.Add(s.Slot.Start())
}

// IsPast reports whether the screening has already started at now.
func (s Session) IsPast(now time.Time) bool {
	return s.StartsAt().Before(now)
}

// Availability summarizes the seat state of one session.
type Availability struct {
	SessionID uint64 `json:"session_id"`
	Capacity  uint32 `json:"capacity"`
	Sold      uint32 `json:"sold"`
	Available uint32 `json:"available"`
}
