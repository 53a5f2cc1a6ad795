package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/service"
)

// Scheduling is the manager-facing part of the booking core.
type Scheduling interface {
	ScheduleSession(ctx context.Context, actorID uint64, in service.SessionInput) (model.Session, error)
	UpdateSession(ctx context.Context, actorID, id uint64, in service.SessionInput) (model.Session, error)
	DeleteSession(ctx context.Context, actorID, id uint64) error
	CreateRoom(ctx context.Context, actorID uint64, number, capacity uint32) (model.Room, error)
}

// SessionHandler serves the MANAGER endpoints for rooms and sessions.
type SessionHandler struct {
	Scheduler Scheduling
}

// NewSessionHandler panics on a nil scheduler.
func NewSessionHandler(s Scheduling) *SessionHandler {
	if s == nil {
		panic("nil scheduler passed to NewSessionHandler")
	}
	return &SessionHandler{Scheduler: s}
}

type roomRequest struct {
	Number   uint32 `json:"number" validate:"required,gt=0"`
	Capacity uint32 `json:"capacity" validate:"required,gte=1"`
}

type sessionRequest struct {
	MovieID  uint64 `json:"movie_id" validate:"required,gt=0"`
	RoomID   uint64 `json:"room_id" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"` // calendar date, time of day not accepted
	TimeSlot string `json:"time_slot" validate:"required"`                 // e.g. "14:00-16:00"
}

func (r sessionRequest) input() (service.SessionInput, error) {
	date, err := model.ParseDate(r.Date)
	if err != nil {
		return service.SessionInput{}, err
	}
	slot, err := model.ParseTimeSlot(strings.TrimSpace(r.TimeSlot))
	if err != nil {
		return service.SessionInput{}, err
	}
	return service.SessionInput{MovieID: r.MovieID, RoomID: r.RoomID, Date: date, Slot: slot}, nil
}

// CreateRoom handles POST /v1/rooms.
func (h *SessionHandler) CreateRoom(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body roomRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	room, err := h.Scheduler.CreateRoom(c.Request().Context(), actorID, body.Number, body.Capacity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// CreateSession handles POST /v1/sessions.  A taken (room, date, slot)
// answers 409 and leaves the existing session untouched.
func (h *SessionHandler) CreateSession(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body sessionRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	in, err := body.input()
	if err != nil {
		return badRequest(c, "invalid date or time_slot")
	}
	s, err := h.Scheduler.ScheduleSession(c.Request().Context(), actorID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateSession handles PUT /v1/sessions/:id.
func (h *SessionHandler) UpdateSession(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var body sessionRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	in, err := body.input()
	if err != nil {
		return badRequest(c, "invalid date or time_slot")
	}
	s, err := h.Scheduler.UpdateSession(c.Request().Context(), actorID, id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// DeleteSession handles DELETE /v1/sessions/:id.
func (h *SessionHandler) DeleteSession(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.Scheduler.DeleteSession(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
