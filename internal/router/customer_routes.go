package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/middleware"
)

// RegisterCustomer registers ticket endpoints under /v1.  All routes
// require a valid JWT with the CUSTOMER role; the purchase route is also
// rate limited when limit is not nil.
func RegisterCustomer(e *echo.Echo, h *handler.TicketHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer),
	)
	var purchase []echo.MiddlewareFunc
	if limit != nil {
		purchase = append(purchase, limit)
	}
	g.POST("/sessions/:id/tickets", h.BuyTickets, purchase...)
	g.GET("/my-tickets", h.ListMyTickets)
	g.POST("/tickets/:id/watch", h.WatchTicket)
}
