package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// Browsing serves the cached public listings.
type Browsing interface {
	ListMovies(ctx context.Context, q model.ListQuery) ([]model.Movie, error)
	ListSessions(ctx context.Context, q model.ListQuery) ([]model.Session, error)
}

// CatalogHandler serves GET /v1/movies and GET /v1/sessions.
type CatalogHandler struct {
	Catalog Browsing
}

func NewCatalogHandler(b Browsing) *CatalogHandler {
	if b == nil {
		panic("nil catalog passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: b}
}

// Query parameters that are not filters.
var listParams = map[string]bool{"offset": true, "limit": true, "sort": true, "order": true}

// listQuery reads offset, limit, sort and order ("asc" or "desc").  Every
// other query parameter is passed on as a filter; the service rejects
// unknown ones.
func listQuery(c echo.Context) (model.ListQuery, error) {
	var q model.ListQuery
	var err error
	if v := c.QueryParam("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil {
			return q, err
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return q, err
		}
	}
	q.SortBy = c.QueryParam("sort")
	switch strings.ToLower(c.QueryParam("order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, strconv.ErrSyntax
	}
	q.Filters = map[string]string{}
	for k, vs := range c.QueryParams() {
		if listParams[k] || len(vs) == 0 {
			continue
		}
		q.Filters[k] = vs[0]
	}
	return q, nil
}

func listResponse(data any, q model.ListQuery) echo.Map {
	return echo.Map{"data": data, "offset": q.Offset, "limit": q.Limit}
}

// ListMovies handles GET /v1/movies.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	q, err := listQuery(c)
	if err != nil {
		return badRequest(c, "invalid offset, limit or order")
	}
	movies, err := h.Catalog.ListMovies(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	if q.Limit == 0 {
		q.Limit = model.DefaultPageLimit
	}
	return c.JSON(http.StatusOK, listResponse(movies, q))
}

// ListSessions handles GET /v1/sessions.
func (h *CatalogHandler) ListSessions(c echo.Context) error {
	q, err := listQuery(c)
	if err != nil {
		return badRequest(c, "invalid offset, limit or order")
	}
	sessions, err := h.Catalog.ListSessions(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	if q.Limit == 0 {
		q.Limit = model.DefaultPageLimit
	}
	return c.JSON(http.StatusOK, listResponse(sessions, q))
}
