package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// MovieRepo reads the movie catalogue.  Movie CRUD lives outside the
// booking core; only lookups and listings are needed here.
type MovieRepo struct {
	db *sql.DB
}

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

const movieColumns = `id, title, min_age, duration_min, created_at, updated_at`

// MovieSortFields and MovieFilters list what List accepts.
var (
	MovieSortFields = []string{"id", "title", "min_age"}
	MovieFilters    = []string{"title", "max_min_age"}
)

var movieSortColumns = map[string]string{
	"id":      "id",
	"title":   "title",
	"min_age": "min_age",
}

func scanMovie(row rowScanner) (model.Movie, error) {
	var m model.Movie
	err := row.Scan(&m.ID, &m.Title, &m.MinAge, &m.DurationMin, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetByID returns ErrMovieNotFound when the movie does not exist.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Movie{}, ErrMovieNotFound
		}
		return model.Movie{}, err
	}
	return m, nil
}

// List returns one page of movies.  The title filter is a case-insensitive
// substring match; max_min_age keeps movies whose restriction does not
// exceed the given age.
func (r *MovieRepo) List(ctx context.Context, lq model.ListQuery) ([]model.Movie, error) {
	where := []string{}
	args := []any{}
	if v, ok := lq.Filters["title"]; ok {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(v)+"%")
	}
	if v, ok := lq.Filters["max_min_age"]; ok {
		where = append(where, "min_age <= ?")
		args = append(args, v)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	q := fmt.Sprintf(`SELECT %s FROM movies WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		movieColumns, cond, orderBy(movieSortColumns, lq, "id ASC"))
	args = append(args, lq.Limit, lq.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Movie, 0, lq.Limit)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
