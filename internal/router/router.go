package router // package router registers the HTTP routes of the booking API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-booking/internal/handler"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Catalog  *handler.CatalogHandler
	Sessions *handler.SessionHandler
	Tickets  *handler.TicketHandler

	// PurchaseLimit guards the purchase endpoint; nil disables it.
	PurchaseLimit echo.MiddlewareFunc
}

// New returns an Echo instance with every route registered.
func New(h Handlers, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	RegisterPublic(e, h)
	RegisterManager(e, h.Sessions, jwtSecret)
	RegisterCustomer(e, h.Tickets, jwtSecret, h.PurchaseLimit)
	return e
}

// RegisterPublic registers unauthenticated routes: health, the cached
// listings and seat availability.
func RegisterPublic(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Health)
	e.GET("/v1/movies", h.Catalog.ListMovies)
	e.GET("/v1/sessions", h.Catalog.ListSessions)
	e.GET("/v1/sessions/:id/availability", h.Tickets.Availability)
}
