package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// Ticketing is the customer-facing part of the booking core.
type Ticketing interface {
	BuyTickets(ctx context.Context, userID, sessionID uint64, quantity int) ([]model.Ticket, error)
	ListMyTickets(ctx context.Context, userID uint64) ([]model.Ticket, error)
	WatchTicket(ctx context.Context, userID, ticketID uint64) (model.Ticket, error)
	GetAvailability(ctx context.Context, sessionID uint64) (model.Availability, error)
}

// TicketHandler serves ticket purchase and ticket lifecycle endpoints.
type TicketHandler struct {
	Admission Ticketing
}

// NewTicketHandler panics on a nil admission controller.
func NewTicketHandler(a Ticketing) *TicketHandler {
	if a == nil {
		panic("nil admission passed to NewTicketHandler")
	}
	return &TicketHandler{Admission: a}
}

type buyRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// BuyTickets handles POST /v1/sessions/:id/tickets.  The response lists
// one ticket per seat.  A full session answers 409 with the requested and
// available seat counts.
func (h *TicketHandler) BuyTickets(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var body buyRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	tickets, err := h.Admission.BuyTickets(c.Request().Context(), userID, sessionID, body.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"session_id": sessionID, "tickets": tickets})
}

// ListMyTickets handles GET /v1/my-tickets.
func (h *TicketHandler) ListMyTickets(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	tickets, err := h.Admission.ListMyTickets(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// WatchTicket handles POST /v1/tickets/:id/watch.
func (h *TicketHandler) WatchTicket(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	t, err := h.Admission.WatchTicket(c.Request().Context(), userID, ticketID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Availability handles GET /v1/sessions/:id/availability.  It is public.
func (h *TicketHandler) Availability(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	av, err := h.Admission.GetAvailability(c.Request().Context(), sessionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}
