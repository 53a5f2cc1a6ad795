package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/audit"
	"github.com/iliyamo/cinema-booking/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var (
	sessionCols = []string{"id", "movie_id", "room_id", "session_date", "time_slot", "sold_seats", "created_at", "updated_at"}
	ticketCols  = []string{"id", "user_id", "session_id", "purchased_at", "watched_at"}
	ts          = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	day         = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
)

func sessionRow(id uint64, sold uint32) *sqlmock.Rows {
	return sqlmock.NewRows(sessionCols).AddRow(id, 7, 3, day, "18:00-20:00", sold, ts, ts)
}

func dup(key string) error {
	return &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry '3-2026-06-01-18:00-20:00' for key '" + key + "'"}
}

func TestSoldOutErrorMatchesSentinel(t *testing.T) {
	var err error = &SoldOutError{Requested: 3, Available: 1}
	assert.ErrorIs(t, err, ErrSoldOut)
	var so *SoldOutError
	require.ErrorAs(t, err, &so)
	assert.Equal(t, 1, so.Available)
	assert.Equal(t, "sold out: requested 3, available 1", err.Error())
}

func TestSessionReferenceError(t *testing.T) {
	room := &mysql.MySQLError{Number: mysqlNoReferencedRow, Message: "a foreign key constraint fails (CONSTRAINT `fk_sessions_room` ...)"}
	movie := &mysql.MySQLError{Number: mysqlNoReferencedRow, Message: "a foreign key constraint fails (CONSTRAINT `fk_sessions_movie` ...)"}
	assert.Equal(t, ErrRoomNotFound, sessionReferenceError(room))
	assert.Equal(t, ErrMovieNotFound, sessionReferenceError(movie))
	assert.Nil(t, sessionReferenceError(errors.New("other")))
}

func TestSessionRepoGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	mock.ExpectQuery(`SELECT .* FROM sessions WHERE id = \?`).WithArgs(uint64(1)).WillReturnRows(sessionRow(1, 4))
	s, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.Slot1800, s.Slot)
	assert.Equal(t, uint32(4), s.SoldSeats)
	assert.Equal(t, day, s.Date)

	mock.ExpectQuery(`SELECT .* FROM sessions WHERE id = \?`).WithArgs(uint64(2)).WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRepoExistsInSlot(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	mock.ExpectQuery(`SELECT 1 FROM sessions`).
		WithArgs(uint64(3), "2026-06-01", "18:00-20:00", uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	taken, err := repo.ExistsInSlot(context.Background(), 3, day, model.Slot1800, 9)
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectQuery(`SELECT 1 FROM sessions`).
		WithArgs(uint64(3), "2026-06-01", "20:00-22:00", uint64(0)).
		WillReturnError(sql.ErrNoRows)
	taken, err = repo.ExistsInSlot(context.Background(), 3, day, model.Slot2000, 0)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestSessionRepoCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(uint64(7), uint64(3), "2026-06-01", "18:00-20:00").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery(`SELECT .* FROM sessions WHERE id = \?`).WithArgs(uint64(11)).WillReturnRows(sessionRow(11, 0))

	s := &model.Session{MovieID: 7, RoomID: 3, Date: day, Slot: model.Slot1800}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.Equal(t, uint64(11), s.ID)
	assert.Equal(t, ts, s.CreatedAt)
}

func TestSessionRepoCreateMapsConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"slot taken", dup(uqSessionsRoomDateSlot), ErrSlotTaken},
		{"missing room", &mysql.MySQLError{Number: mysqlNoReferencedRow, Message: "CONSTRAINT `fk_sessions_room`"}, ErrRoomNotFound},
		{"missing movie", &mysql.MySQLError{Number: mysqlNoReferencedRow, Message: "CONSTRAINT `fk_sessions_movie`"}, ErrMovieNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(`INSERT INTO sessions`).WillReturnError(tt.err)
			err := NewSessionRepo(db).Create(context.Background(), &model.Session{MovieID: 7, RoomID: 3, Date: day, Slot: model.Slot1800})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSessionRepoUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	mock.ExpectExec(`UPDATE sessions s\s+JOIN rooms r ON r.id = \?`).
		WithArgs(uint64(4), uint64(7), "2026-06-01", "18:00-20:00", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM sessions WHERE id = \?`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(1, 7, 4, day, "18:00-20:00", 2, ts, ts))

	s := &model.Session{ID: 1, MovieID: 7, RoomID: 4, Date: day, Slot: model.Slot1800}
	require.NoError(t, repo.Update(context.Background(), s))
	assert.Equal(t, uint64(4), s.RoomID)
	assert.Equal(t, uint32(2), s.SoldSeats)
}

func TestSessionRepoUpdateSlotTaken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE sessions s`).WillReturnError(dup(uqSessionsRoomDateSlot))

	err := NewSessionRepo(db).Update(context.Background(), &model.Session{ID: 1, MovieID: 7, RoomID: 3, Date: day, Slot: model.Slot1800})
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestSessionRepoUpdateExplainsMiss(t *testing.T) {
	tests := []struct {
		name   string
		expect func(sqlmock.Sqlmock)
		want   error
	}{
		{
			name: "session missing",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT sold_seats FROM sessions`).WillReturnError(sql.ErrNoRows)
			},
			want: ErrSessionNotFound,
		},
		{
			name: "room missing",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT sold_seats FROM sessions`).WillReturnRows(sqlmock.NewRows([]string{"sold_seats"}).AddRow(5))
				m.ExpectQuery(`SELECT capacity FROM rooms`).WillReturnError(sql.ErrNoRows)
			},
			want: ErrRoomNotFound,
		},
		{
			name: "room too small",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT sold_seats FROM sessions`).WillReturnRows(sqlmock.NewRows([]string{"sold_seats"}).AddRow(5))
				m.ExpectQuery(`SELECT capacity FROM rooms`).WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(2))
			},
			want: ErrCapacityBelowSold,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(`UPDATE sessions s`).WillReturnResult(sqlmock.NewResult(0, 0))
			tt.expect(mock)
			err := NewSessionRepo(db).Update(context.Background(), &model.Session{ID: 1, MovieID: 7, RoomID: 3, Date: day, Slot: model.Slot1800})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSessionRepoDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	mock.ExpectExec(`DELETE FROM sessions WHERE id = \?`).WithArgs(uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 1))

	mock.ExpectExec(`DELETE FROM sessions`).WithArgs(uint64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrSessionNotFound)

	mock.ExpectExec(`DELETE FROM sessions`).WithArgs(uint64(3)).
		WillReturnError(&mysql.MySQLError{Number: mysqlRowIsReferenced, Message: "fk_tickets_session"})
	assert.ErrorIs(t, repo.Delete(context.Background(), 3), ErrSessionHasTickets)
}

func TestSessionRepoAvailability(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	mock.ExpectQuery(`SELECT s.id, r.capacity, s.sold_seats`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity", "sold_seats"}).AddRow(1, 100, 97))
	a, err := repo.Availability(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.Availability{SessionID: 1, Capacity: 100, Sold: 97, Available: 3}, a)

	mock.ExpectQuery(`SELECT s.id, r.capacity, s.sold_seats`).WithArgs(uint64(2)).WillReturnError(sql.ErrNoRows)
	_, err = repo.Availability(context.Background(), 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRepoList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	lq := model.ListQuery{Offset: 10, Limit: 5, SortBy: "date", Desc: true, Filters: map[string]string{"room_id": "3"}}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE room_id = ? ORDER BY session_date DESC, id ASC LIMIT ? OFFSET ?`)).
		WithArgs("3", 5, 10).
		WillReturnRows(sessionRow(1, 0).AddRow(2, 7, 3, day, "20:00-22:00", 1, ts, ts))

	out, err := repo.List(context.Background(), lq)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.Slot2000, out[1].Slot)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "id ASC", orderBy(movieSortColumns, model.ListQuery{}, "id ASC"))
	assert.Equal(t, "id DESC", orderBy(movieSortColumns, model.ListQuery{SortBy: "id", Desc: true}, "x"))
	assert.Equal(t, "title ASC, id ASC", orderBy(movieSortColumns, model.ListQuery{SortBy: "title"}, "x"))
	assert.Equal(t, "x", orderBy(movieSortColumns, model.ListQuery{SortBy: "drop table"}, "x"))
}

func TestTicketRepoReserve(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	repo.now = func() time.Time { return ts }

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sessions s\s+JOIN rooms r ON r.id = s.room_id\s+SET s.sold_seats = s.sold_seats \+ \?`).
		WithArgs(2, uint64(1), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(`INSERT INTO tickets`)
	prep.ExpectExec().WithArgs(uint64(5), uint64(1), ts).WillReturnResult(sqlmock.NewResult(100, 1))
	prep.ExpectExec().WithArgs(uint64(5), uint64(1), ts).WillReturnResult(sqlmock.NewResult(101, 1))
	mock.ExpectCommit()

	tickets, err := repo.Reserve(context.Background(), 5, 1, 2)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, uint64(100), tickets[0].ID)
	assert.Equal(t, uint64(101), tickets[1].ID)
	for _, tk := range tickets {
		assert.Equal(t, uint64(5), tk.UserID)
		assert.Equal(t, uint64(1), tk.SessionID)
		assert.False(t, tk.Watched())
	}
}

func TestTicketRepoReserveSoldOut(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sessions s`).WithArgs(4, uint64(1), 4).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT r.capacity, s.sold_seats`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "sold_seats"}).AddRow(100, 97))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 5, 1, 4)
	require.ErrorIs(t, err, ErrSoldOut)
	var so *SoldOutError
	require.ErrorAs(t, err, &so)
	assert.Equal(t, 4, so.Requested)
	assert.Equal(t, 3, so.Available)
}

func TestTicketRepoReserveMissingSession(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sessions s`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT r.capacity, s.sold_seats`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewTicketRepo(db).Reserve(context.Background(), 5, 1, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTicketRepoReserveRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sessions s`).WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(`INSERT INTO tickets`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnError(boom)
	mock.ExpectRollback()

	_, err := NewTicketRepo(db).Reserve(context.Background(), 5, 1, 2)
	assert.ErrorIs(t, err, boom)
}

func TestTicketRepoListByUser(t *testing.T) {
	db, mock := newMock(t)
	watched := ts.Add(time.Hour)

	mock.ExpectQuery(`SELECT .* FROM tickets WHERE user_id = \? ORDER BY purchased_at DESC`).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(ticketCols).
			AddRow(2, 5, 1, ts, nil).
			AddRow(1, 5, 1, ts, watched))

	out, err := NewTicketRepo(db).ListByUser(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.False(t, out[0].Watched())
	require.True(t, out[1].Watched())
	assert.Equal(t, watched, *out[1].WatchedAt)
}

func TestTicketRepoMarkWatched(t *testing.T) {
	at := ts.Add(2 * time.Hour)
	tests := []struct {
		name     string
		affected int64
		owner    uint64
		getErr   error
		want     error
	}{
		{name: "first use", affected: 1, owner: 5},
		{name: "second use", affected: 0, owner: 5, want: ErrTicketAlreadyWatched},
		{name: "someone else's", affected: 0, owner: 6, want: ErrTicketNotFound},
		{name: "missing", affected: 0, getErr: sql.ErrNoRows, want: ErrTicketNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(`UPDATE tickets SET watched_at = \?`).
				WithArgs(at, uint64(9), uint64(5)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			q := mock.ExpectQuery(`SELECT .* FROM tickets WHERE id = \?`).WithArgs(uint64(9))
			if tt.getErr != nil {
				q.WillReturnError(tt.getErr)
			} else {
				q.WillReturnRows(sqlmock.NewRows(ticketCols).AddRow(9, tt.owner, 1, ts, at))
			}

			tk, err := NewTicketRepo(db).MarkWatched(context.Background(), 9, 5, at)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.True(t, tk.Watched())
		})
	}
}

func TestRoomRepoCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRoomRepo(db)

	mock.ExpectExec(`INSERT INTO rooms`).WithArgs(uint32(1), uint32(100)).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery(`SELECT .* FROM rooms WHERE id = \?`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_number", "capacity", "created_at", "updated_at"}).AddRow(3, 1, 100, ts, ts))
	room := &model.Room{Number: 1, Capacity: 100}
	require.NoError(t, repo.Create(context.Background(), room))
	assert.Equal(t, uint64(3), room.ID)

	mock.ExpectExec(`INSERT INTO rooms`).WillReturnError(dup(uqRoomsNumber))
	assert.ErrorIs(t, repo.Create(context.Background(), &model.Room{Number: 1, Capacity: 10}), ErrRoomNumberExists)

	mock.ExpectQuery(`SELECT .* FROM rooms`).WithArgs(uint64(4)).WillReturnError(sql.ErrNoRows)
	_, err := repo.GetByID(context.Background(), 4)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMovieRepoList(t *testing.T) {
	db, mock := newMock(t)

	lq := model.ListQuery{Limit: 10, Filters: map[string]string{"title": "Alien"}}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM movies WHERE LOWER(title) LIKE ? ORDER BY id ASC LIMIT ? OFFSET ?`)).
		WithArgs("%alien%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "min_age", "duration_min", "created_at", "updated_at"}).
			AddRow(1, "Alien", 16, 117, ts, ts))

	out, err := NewMovieRepo(db).List(context.Background(), lq)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(16), out[0].MinAge)
}

func TestMovieAndUserNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM movies WHERE id = \?`).WillReturnError(sql.ErrNoRows)
	_, err := NewMovieRepo(db).GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMovieNotFound)

	mock.ExpectQuery(`FROM users WHERE id=\?`).WillReturnError(sql.ErrNoRows)
	_, err = NewUserRepo(db).GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuditRepoWriteEvent(t *testing.T) {
	db, mock := newMock(t)
	e := audit.Event{ID: "e1", Action: audit.ActionTicketPurchased, ActorID: 5, Entity: "ticket", EntityID: 100,
		Payload: map[string]any{"session_id": 1}, At: ts}

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs("e1", audit.ActionTicketPurchased, uint64(5), "ticket", uint64(100), `{"session_id":1}`, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewAuditRepo(db).WriteEvent(context.Background(), e))
}
