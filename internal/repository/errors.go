// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers to distinguish
// between failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMovieNotFound   = errors.New("movie not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrTicketNotFound  = errors.New("ticket not found")

	// ErrSlotTaken is returned when the (room, date, slot) unique key
	// rejects an insert or update.
	ErrSlotTaken = errors.New("time slot already taken")

	// ErrRoomNumberExists is returned when a room number is reused.
	ErrRoomNumberExists = errors.New("room number already exists")

	// ErrCapacityBelowSold is returned when a session would move into a
	// room with fewer seats than it has already sold.
	ErrCapacityBelowSold = errors.New("room capacity below sold seats")

	// ErrSessionHasTickets is returned when deleting a session that still
	// owns tickets.
	ErrSessionHasTickets = errors.New("session has tickets")

	// ErrTicketAlreadyWatched is returned when a ticket is used twice.
	ErrTicketAlreadyWatched = errors.New("ticket already watched")

	// ErrSoldOut is matched by *SoldOutError via errors.Is.
	ErrSoldOut = errors.New("sold out")
)

// SoldOutError reports a rejected admission together with the seats that
// were still free when the conditional update failed.
type SoldOutError struct {
	Requested int
	Available int
}

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("sold out: requested %d, available %d", e.Requested, e.Available)
}

func (e *SoldOutError) Is(target error) bool { return target == ErrSoldOut }

// Unique constraint names from schema.sql.
const (
	uqSessionsRoomDateSlot = "uq_sessions_room_date_slot"
	uqRoomsNumber          = "uq_rooms_number"
)

// Foreign key names from schema.sql.
const (
	fkSessionsMovie = "fk_sessions_movie"
	fkSessionsRoom  = "fk_sessions_room"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// isDuplicateOn reports whether err is a MySQL duplicate key error raised
// by the named unique constraint.
func isDuplicateOn(err error, constraint string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return false
	}
	return strings.Contains(me.Message, constraint)
}

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

// sessionReferenceError maps a missing movie or room reported by the
// sessions foreign keys to the matching not-found sentinel.
func sessionReferenceError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlNoReferencedRow {
		return nil
	}
	switch {
	case strings.Contains(me.Message, fkSessionsRoom):
		return ErrRoomNotFound
	case strings.Contains(me.Message, fkSessionsMovie):
		return ErrMovieNotFound
	}
	return nil
}
