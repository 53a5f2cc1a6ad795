package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// SessionRepo manages persistence for sessions.  Scheduling correctness
// rests on the uq_sessions_room_date_slot unique key: inserts and updates
// that collide with it surface as ErrSlotTaken.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = `id, movie_id, room_id, session_date, time_slot, sold_seats, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var s model.Session
	var slot string
	err := row.Scan(&s.ID, &s.MovieID, &s.RoomID, &s.Date, &slot, &s.SoldSeats, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Session{}, err
	}
	s.Slot = model.TimeSlot(slot)
	s.Date = model.NormalizeDate(s.Date)
	return s, nil
}

// GetByID retrieves a session by its ID.  It returns ErrSessionNotFound if
// there is no matching row.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrSessionNotFound
		}
		return model.Session{}, err
	}
	return s, nil
}

// ExistsInSlot reports whether another session already occupies the
// (room, date, slot) tuple.  excludeID skips the session being updated;
// pass 0 when creating.  This is an optimistic pre-check only: two callers
// can both see false, and the unique key decides which write wins.
func (r *SessionRepo) ExistsInSlot(ctx context.Context, roomID uint64, date time.Time, slot model.TimeSlot, excludeID uint64) (bool, error) {
	const q = `SELECT 1 FROM sessions
               WHERE room_id = ? AND session_date = ? AND time_slot = ? AND id <> ?
               LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, q, roomID, date.Format(model.DateLayout), string(slot), excludeID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts a new session and populates its ID and DB-default fields.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `INSERT INTO sessions (movie_id, room_id, session_date, time_slot) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.MovieID, s.RoomID, s.Date.Format(model.DateLayout), string(s.Slot))
	if err != nil {
		if isDuplicateOn(err, uqSessionsRoomDateSlot) {
			return ErrSlotTaken
		}
		if refErr := sessionReferenceError(err); refErr != nil {
			return refErr
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*s = fresh
	return nil
}

// Update moves a session to a new movie, room, date or slot.  The statement
// joins the target room so that the move only applies while the room can
// still seat everyone who already bought a ticket.  When no row matches,
// a follow-up lookup tells apart a missing session, a missing room and an
// undersized room.
func (r *SessionRepo) Update(ctx context.Context, s *model.Session) error {
	const q = `UPDATE sessions s
               JOIN rooms r ON r.id = ?
               SET s.movie_id = ?, s.room_id = r.id, s.session_date = ?, s.time_slot = ?, s.updated_at = CURRENT_TIMESTAMP
               WHERE s.id = ? AND s.sold_seats <= r.capacity`
	res, err := r.db.ExecContext(ctx, q, s.RoomID, s.MovieID, s.Date.Format(model.DateLayout), string(s.Slot), s.ID)
	if err != nil {
		if isDuplicateOn(err, uqSessionsRoomDateSlot) {
			return ErrSlotTaken
		}
		if refErr := sessionReferenceError(err); refErr != nil {
			return refErr
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.explainUpdateMiss(ctx, s.ID, s.RoomID)
	}
	fresh, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = fresh
	return nil
}

func (r *SessionRepo) explainUpdateMiss(ctx context.Context, sessionID, roomID uint64) error {
	var sold uint32
	if err := r.db.QueryRowContext(ctx, `SELECT sold_seats FROM sessions WHERE id = ?`, sessionID).Scan(&sold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	var capacity uint32
	if err := r.db.QueryRowContext(ctx, `SELECT capacity FROM rooms WHERE id = ?`, roomID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return err
	}
	return ErrCapacityBelowSold
}

// Delete removes a session by id.  Sessions that still own tickets are
// protected by the tickets foreign key and yield ErrSessionHasTickets.
func (r *SessionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		if isMySQLError(err, mysqlRowIsReferenced) {
			return ErrSessionHasTickets
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Availability returns capacity and sold seats for a session.
func (r *SessionRepo) Availability(ctx context.Context, sessionID uint64) (model.Availability, error) {
	const q = `SELECT s.id, r.capacity, s.sold_seats
               FROM sessions s
               JOIN rooms r ON r.id = s.room_id
               WHERE s.id = ?`
	var a model.Availability
	if err := r.db.QueryRowContext(ctx, q, sessionID).Scan(&a.SessionID, &a.Capacity, &a.Sold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Availability{}, ErrSessionNotFound
		}
		return model.Availability{}, err
	}
	if a.Sold < a.Capacity {
		a.Available = a.Capacity - a.Sold
	}
	return a, nil
}

// SessionSortFields and SessionFilters list what List accepts.
var (
	SessionSortFields = []string{"id", "date", "movie_id", "room_id"}
	SessionFilters    = []string{"movie_id", "room_id", "date"}
)

var sessionSortColumns = map[string]string{
	"id":       "id",
	"date":     "session_date",
	"movie_id": "movie_id",
	"room_id":  "room_id",
}

// List returns one page of sessions.  The query must already be normalized
// against SessionSortFields and SessionFilters.
func (r *SessionRepo) List(ctx context.Context, lq model.ListQuery) ([]model.Session, error) {
	where := []string{}
	args := []any{}
	if v, ok := lq.Filters["movie_id"]; ok {
		where = append(where, "movie_id = ?")
		args = append(args, v)
	}
	if v, ok := lq.Filters["room_id"]; ok {
		where = append(where, "room_id = ?")
		args = append(args, v)
	}
	if v, ok := lq.Filters["date"]; ok {
		where = append(where, "session_date = ?")
		args = append(args, v)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	q := fmt.Sprintf(`SELECT %s FROM sessions WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		sessionColumns, cond, orderBy(sessionSortColumns, lq, "session_date, time_slot, id"))
	args = append(args, lq.Limit, lq.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Session, 0, lq.Limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// orderBy renders an ORDER BY clause from a whitelisted column map.  The id
// tiebreaker keeps pagination stable.
func orderBy(columns map[string]string, lq model.ListQuery, def string) string {
	col, ok := columns[lq.SortBy]
	if !ok {
		return def
	}
	dir := "ASC"
	if lq.Desc {
		dir = "DESC"
	}
	if col == "id" {
		return "id " + dir
	}
	return col + " " + dir + ", id ASC"
}
