package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking/internal/audit"
	"github.com/iliyamo/cinema-booking/internal/cache"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// SessionInput is the requested placement of a session.
type SessionInput struct {
	MovieID uint64
	RoomID  uint64
	Date    time.Time
	Slot    model.TimeSlot
}

// Scheduler places sessions into rooms and keeps every (room, date, slot)
// tuple occupied by at most one session.
//
// The pre-check in ValidateAndReserveSlot only makes the common conflict
// cheap to report.  Two schedulers can both pass it; the store's unique key
// then lets exactly one write through and the loser gets a Conflict, and
// the session that was already there is never modified.
type Scheduler struct {
	sessions SessionStore
	rooms    RoomStore
	movies   MovieStore
	audit    audit.Sink
	lists    Invalidator
	log      *logrus.Entry
}

// NewScheduler wires a Scheduler.  lists may be nil when caching is off.
func NewScheduler(sessions SessionStore, rooms RoomStore, movies MovieStore, sink audit.Sink, lists Invalidator) *Scheduler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Scheduler{
		sessions: sessions,
		rooms:    rooms,
		movies:   movies,
		audit:    sink,
		lists:    lists,
		log:      logger.WithComponent("scheduler"),
	}
}

// ValidateAndReserveSlot fails with Conflict when another session already
// occupies (roomID, date, slot).  excludeID is the session being moved, or
// zero when creating.
func (s *Scheduler) ValidateAndReserveSlot(ctx context.Context, roomID uint64, date time.Time, slot model.TimeSlot, excludeID uint64) error {
	if !slot.Valid() {
		return validationError("invalid time slot", model.ErrInvalidTimeSlot)
	}
	taken, err := s.sessions.ExistsInSlot(ctx, roomID, model.NormalizeDate(date), slot, excludeID)
	if err != nil {
		return translate("check slot", err)
	}
	if taken {
		return newError(KindConflict, CodeSlotTaken, "time slot already taken for this room")
	}
	return nil
}

// ScheduleSession creates a session after checking that the movie and room
// exist and the slot is free.
func (s *Scheduler) ScheduleSession(ctx context.Context, actorID uint64, in SessionInput) (model.Session, error) {
	session, err := model.NewSession(in.MovieID, in.RoomID, in.Date, in.Slot)
	if err != nil {
		return model.Session{}, validationError("invalid session", err)
	}
	if err := s.checkReferences(ctx, session.MovieID, session.RoomID); err != nil {
		return model.Session{}, err
	}
	if err := s.ValidateAndReserveSlot(ctx, session.RoomID, session.Date, session.Slot, 0); err != nil {
		return model.Session{}, err
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		return model.Session{}, s.fail("create session", err, session)
	}

	s.log.WithFields(sessionFields(session)).Info("session scheduled")
	s.audit.Record(audit.NewEvent(audit.ActionSessionCreated, actorID, "session", session.ID, sessionPayload(session)))
	s.invalidate(ctx)
	return session, nil
}

// UpdateSession moves session id to a new movie, room, date or slot.  The
// slot check excludes the session itself so an unchanged slot is not a
// conflict.  Moving into a room smaller than the seats already sold fails
// with ValidationFailed.
func (s *Scheduler) UpdateSession(ctx context.Context, actorID, id uint64, in SessionInput) (model.Session, error) {
	current, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return model.Session{}, translate("get session", err)
	}
	next, err := model.NewSession(in.MovieID, in.RoomID, in.Date, in.Slot)
	if err != nil {
		return model.Session{}, validationError("invalid session", err)
	}
	next.ID = current.ID
	next.SoldSeats = current.SoldSeats

	if _, err := s.movies.GetByID(ctx, next.MovieID); err != nil {
		return model.Session{}, translate("get movie", err)
	}
	room, err := s.rooms.GetByID(ctx, next.RoomID)
	if err != nil {
		return model.Session{}, translate("get room", err)
	}
	if room.Capacity < current.SoldSeats {
		return model.Session{}, &Error{
			Kind:    KindValidationFailed,
			Code:    CodeCapacityBelowSold,
			Message: "room capacity is below seats already sold",
		}
	}
	if err := s.ValidateAndReserveSlot(ctx, next.RoomID, next.Date, next.Slot, next.ID); err != nil {
		return model.Session{}, err
	}
	if err := s.sessions.Update(ctx, &next); err != nil {
		return model.Session{}, s.fail("update session", err, next)
	}

	s.log.WithFields(sessionFields(next)).Info("session updated")
	s.audit.Record(audit.NewEvent(audit.ActionSessionUpdated, actorID, "session", next.ID, sessionPayload(next)))
	s.invalidate(ctx)
	return next, nil
}

// DeleteSession removes a session that has no tickets.
func (s *Scheduler) DeleteSession(ctx context.Context, actorID, id uint64) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return translate("delete session", err)
	}
	s.log.WithField("session_id", id).Info("session deleted")
	s.audit.Record(audit.NewEvent(audit.ActionSessionDeleted, actorID, "session", id, nil))
	s.invalidate(ctx)
	return nil
}

// CreateRoom registers a room.  A reused number is a Conflict.
func (s *Scheduler) CreateRoom(ctx context.Context, actorID uint64, number, capacity uint32) (model.Room, error) {
	room, err := model.NewRoom(number, capacity)
	if err != nil {
		return model.Room{}, validationError("invalid room", err)
	}
	if err := s.rooms.Create(ctx, &room); err != nil {
		return model.Room{}, translate("create room", err)
	}
	s.audit.Record(audit.NewEvent(audit.ActionRoomCreated, actorID, "room", room.ID,
		map[string]any{"number": room.Number, "capacity": room.Capacity}))
	return room, nil
}

func (s *Scheduler) checkReferences(ctx context.Context, movieID, roomID uint64) error {
	if _, err := s.movies.GetByID(ctx, movieID); err != nil {
		return translate("get movie", err)
	}
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return translate("get room", err)
	}
	return nil
}

// fail translates a write error and logs infrastructure faults.
func (s *Scheduler) fail(op string, err error, session model.Session) error {
	out := translate(op, err)
	var se *Error
	if !errors.As(out, &se) {
		s.log.WithError(err).WithFields(sessionFields(session)).Error(op + " failed")
	}
	return out
}

func (s *Scheduler) invalidate(ctx context.Context) {
	if s.lists != nil {
		s.lists.Invalidate(ctx, cache.ListPrefix(SessionsResource))
	}
}

func sessionFields(s model.Session) logrus.Fields {
	return logrus.Fields{
		"session_id": s.ID,
		"movie_id":   s.MovieID,
		"room_id":    s.RoomID,
		"date":       s.Date.Format(model.DateLayout),
		"slot":       s.Slot,
	}
}

func sessionPayload(s model.Session) map[string]any {
	return map[string]any{
		"movie_id":  s.MovieID,
		"room_id":   s.RoomID,
		"date":      s.Date.Format(model.DateLayout),
		"time_slot": string(s.Slot),
	}
}
