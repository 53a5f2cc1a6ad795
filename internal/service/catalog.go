package service

import (
	"context"
	"strconv"
	"time"

	"github.com/iliyamo/cinema-booking/internal/cache"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Cache resources of the list queries.  Keys look like movies:list:0:10.
const (
	MoviesResource   = "movies"
	SessionsResource = "sessions"
)

// Catalog serves the public list queries through the cache coordinator.
// With a nil coordinator every call goes to the store.
type Catalog struct {
	movies   MovieStore
	sessions SessionStore
	coord    *cache.Coordinator
	ttl      time.Duration
}

func NewCatalog(movies MovieStore, sessions SessionStore, coord *cache.Coordinator, ttl time.Duration) *Catalog {
	return &Catalog{movies: movies, sessions: sessions, coord: coord, ttl: ttl}
}

// ListMovies returns one page of movies.
func (c *Catalog) ListMovies(ctx context.Context, q model.ListQuery) ([]model.Movie, error) {
	if err := q.Normalize(repository.MovieSortFields, repository.MovieFilters); err != nil {
		return nil, validationError("invalid list query", err)
	}
	if v, ok := q.Filters["max_min_age"]; ok {
		if _, err := strconv.ParseUint(v, 10, 8); err != nil {
			return nil, validationError("max_min_age must be an age", err)
		}
	}
	movies, err := cache.GetOrComputeJSON(ctx, c.coord, cache.ListKey(MoviesResource, q), c.ttl,
		func(ctx context.Context) ([]model.Movie, error) {
			return c.movies.List(ctx, q)
		})
	if err != nil {
		return nil, translate("list movies", err)
	}
	return movies, nil
}

// ListSessions returns one page of sessions.  Scheduling changes invalidate
// every cached page.
func (c *Catalog) ListSessions(ctx context.Context, q model.ListQuery) ([]model.Session, error) {
	if err := q.Normalize(repository.SessionSortFields, repository.SessionFilters); err != nil {
		return nil, validationError("invalid list query", err)
	}
	for _, k := range []string{"movie_id", "room_id"} {
		if v, ok := q.Filters[k]; ok {
			if _, err := strconv.ParseUint(v, 10, 64); err != nil {
				return nil, validationError(k+" must be a positive integer", err)
			}
		}
	}
	if v, ok := q.Filters["date"]; ok {
		d, err := model.ParseDate(v)
		if err != nil {
			return nil, validationError("date must be YYYY-MM-DD", err)
		}
		q.Filters["date"] = d.Format(model.DateLayout)
	}
	sessions, err := cache.GetOrComputeJSON(ctx, c.coord, cache.ListKey(SessionsResource, q), c.ttl,
		func(ctx context.Context) ([]model.Session, error) {
			return c.sessions.List(ctx, q)
		})
	if err != nil {
		return nil, translate("list sessions", err)
	}
	return sessions, nil
}
