package model

import (
	"errors"
	"time"
)

// Room describes a physical screening room.  Number is globally unique and
// Capacity is the number of seats that may be sold per session.
type Room struct {
	ID        uint64    `json:"id"`         // rooms.id
	Number    uint32    `json:"number"`     // rooms.room_number
	Capacity  uint32    `json:"capacity"`   // rooms.capacity
	CreatedAt time.Time `json:"created_at"` // rooms.created_at
	UpdatedAt time.Time `json:"updated_at"` // rooms.updated_at
}

var (
	ErrInvalidRoomNumber = errors.New("room number must be positive")
	ErrInvalidCapacity   = errors.New("room capacity must be at least 1")
)

// NewRoom validates a room that has not been stored yet.
func NewRoom(number, capacity uint32) (Room, error) {
	if number == 0 {
		return Room{}, ErrInvalidRoomNumber
	}
	if capacity < 1 {
		return Room{}, ErrInvalidCapacity
	}
	return Room{Number: number, Capacity: capacity}, nil
}
