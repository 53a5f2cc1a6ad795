// Package service implements the booking core: scheduling sessions without
// double-booking a room, admitting ticket purchases against room capacity,
// and serving cached catalogue listings.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// SessionStore persists sessions.  Create and Update must report a taken
// (room, date, slot) as repository.ErrSlotTaken.
type SessionStore interface {
	GetByID(ctx context.Context, id uint64) (model.Session, error)
	ExistsInSlot(ctx context.Context, roomID uint64, date time.Time, slot model.TimeSlot, excludeID uint64) (bool, error)
	Create(ctx context.Context, s *model.Session) error
	Update(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id uint64) error
	Availability(ctx context.Context, sessionID uint64) (model.Availability, error)
	List(ctx context.Context, q model.ListQuery) ([]model.Session, error)
}

type RoomStore interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id uint64) (model.Room, error)
}

type MovieStore interface {
	GetByID(ctx context.Context, id uint64) (model.Movie, error)
	List(ctx context.Context, q model.ListQuery) ([]model.Movie, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TicketStore issues tickets.  Reserve must admit all seats or none and
// report a full session as *repository.SoldOutError.
type TicketStore interface {
	Reserve(ctx context.Context, userID, sessionID uint64, quantity int) ([]model.Ticket, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error)
	MarkWatched(ctx context.Context, ticketID, userID uint64, at time.Time) (model.Ticket, error)
}

// Invalidator drops cached list entries by key prefix.
type Invalidator interface {
	Invalidate(ctx context.Context, prefix string)
}
