package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking/internal/audit"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// memDB is an in-memory stand-in for MySQL.  Its mutex plays the part of
// the unique key and the conditional update: every check and write happens
// under it.
type memDB struct {
	mu       sync.Mutex
	rooms    map[uint64]model.Room
	movies   map[uint64]model.Movie
	users    map[uint64]model.User
	sessions map[uint64]model.Session
	tickets  map[uint64]model.Ticket
	nextID   uint64

	failNext error // returned once by the next store call
	listHits int
}

func newMemDB() *memDB {
	return &memDB{
		rooms:    map[uint64]model.Room{},
		movies:   map[uint64]model.Movie{},
		users:    map[uint64]model.User{},
		sessions: map[uint64]model.Session{},
		tickets:  map[uint64]model.Ticket{},
		nextID:   100,
	}
}

func (db *memDB) id() uint64 { db.nextID++; return db.nextID }

func (db *memDB) takeFailure() error {
	err := db.failNext
	db.failNext = nil
	return err
}

func (db *memDB) addRoom(id uint64, capacity uint32) {
	db.rooms[id] = model.Room{ID: id, Number: uint32(id), Capacity: capacity}
}

func (db *memDB) addMovie(id uint64, title string, minAge uint8) {
	db.movies[id] = model.Movie{ID: id, Title: title, MinAge: minAge}
}

func (db *memDB) addUser(id uint64, age uint8) {
	db.users[id] = model.User{ID: id, Email: "user@example.com", Name: "user", Age: age}
}

func (db *memDB) addSession(s model.Session) model.Session {
	if s.ID == 0 {
		s.ID = db.id()
	}
	db.sessions[s.ID] = s
	return s
}

func (db *memDB) ticketCount(sessionID uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, t := range db.tickets {
		if t.SessionID == sessionID {
			n++
		}
	}
	return n
}

type memSessions struct{ db *memDB }

func (m memSessions) GetByID(_ context.Context, id uint64) (model.Session, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.db.takeFailure(); err != nil {
		return model.Session{}, err
	}
	s, ok := m.db.sessions[id]
	if !ok {
		return model.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (m memSessions) ExistsInSlot(_ context.Context, roomID uint64, date time.Time, slot model.TimeSlot, excludeID uint64) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.slotTaken(roomID, date, slot, excludeID), nil
}

func (db *memDB) slotTaken(roomID uint64, date time.Time, slot model.TimeSlot, excludeID uint64) bool {
	for _, s := range db.sessions {
		if s.ID != excludeID && s.RoomID == roomID && s.Date.Equal(date) && s.Slot == slot {
			return true
		}
	}
	return false
}

func (m memSessions) Create(_ context.Context, s *model.Session) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.slotTaken(s.RoomID, s.Date, s.Slot, 0) {
		return repository.ErrSlotTaken
	}
	s.ID = m.db.id()
	m.db.sessions[s.ID] = *s
	return nil
}

func (m memSessions) Update(_ context.Context, s *model.Session) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cur, ok := m.db.sessions[s.ID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if m.db.slotTaken(s.RoomID, s.Date, s.Slot, s.ID) {
		return repository.ErrSlotTaken
	}
	if room := m.db.rooms[s.RoomID]; room.Capacity < cur.SoldSeats {
		return repository.ErrCapacityBelowSold
	}
	s.SoldSeats = cur.SoldSeats
	m.db.sessions[s.ID] = *s
	return nil
}

func (m memSessions) Delete(_ context.Context, id uint64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	for _, t := range m.db.tickets {
		if t.SessionID == id {
			return repository.ErrSessionHasTickets
		}
	}
	delete(m.db.sessions, id)
	return nil
}

func (m memSessions) Availability(_ context.Context, id uint64) (model.Availability, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.sessions[id]
	if !ok {
		return model.Availability{}, repository.ErrSessionNotFound
	}
	capacity := m.db.rooms[s.RoomID].Capacity
	return model.Availability{SessionID: id, Capacity: capacity, Sold: s.SoldSeats, Available: capacity - s.SoldSeats}, nil
}

func (m memSessions) List(_ context.Context, q model.ListQuery) ([]model.Session, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.listHits++
	out := make([]model.Session, 0, len(m.db.sessions))
	for _, s := range m.db.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, q), nil
}

func page[T any](all []T, q model.ListQuery) []T {
	if q.Offset >= len(all) {
		return []T{}
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[q.Offset:end]
}

type memRooms struct{ db *memDB }

func (m memRooms) Create(_ context.Context, r *model.Room) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.rooms {
		if existing.Number == r.Number {
			return repository.ErrRoomNumberExists
		}
	}
	r.ID = m.db.id()
	m.db.rooms[r.ID] = *r
	return nil
}

func (m memRooms) GetByID(_ context.Context, id uint64) (model.Room, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.rooms[id]
	if !ok {
		return model.Room{}, repository.ErrRoomNotFound
	}
	return r, nil
}

type memMovies struct{ db *memDB }

func (m memMovies) GetByID(_ context.Context, id uint64) (model.Movie, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	mv, ok := m.db.movies[id]
	if !ok {
		return model.Movie{}, repository.ErrMovieNotFound
	}
	return mv, nil
}

func (m memMovies) List(_ context.Context, q model.ListQuery) ([]model.Movie, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.listHits++
	if err := m.db.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]model.Movie, 0, len(m.db.movies))
	for _, mv := range m.db.movies {
		out = append(out, mv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, q), nil
}

type memUsers struct{ db *memDB }

func (m memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type memTickets struct{ db *memDB }

func (m memTickets) Reserve(_ context.Context, userID, sessionID uint64, quantity int) ([]model.Ticket, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.db.takeFailure(); err != nil {
		return nil, err
	}
	s, ok := m.db.sessions[sessionID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	capacity := int(m.db.rooms[s.RoomID].Capacity)
	if int(s.SoldSeats)+quantity > capacity {
		return nil, &repository.SoldOutError{Requested: quantity, Available: capacity - int(s.SoldSeats)}
	}
	s.SoldSeats += uint32(quantity)
	m.db.sessions[sessionID] = s
	out := make([]model.Ticket, quantity)
	for i := range out {
		t := model.Ticket{ID: m.db.id(), UserID: userID, SessionID: sessionID, PurchasedAt: time.Now().UTC()}
		m.db.tickets[t.ID] = t
		out[i] = t
	}
	return out, nil
}

func (m memTickets) ListByUser(_ context.Context, userID uint64) ([]model.Ticket, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Ticket{}
	for _, t := range m.db.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memTickets) MarkWatched(_ context.Context, ticketID, userID uint64, at time.Time) (model.Ticket, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.tickets[ticketID]
	if !ok || t.UserID != userID {
		return model.Ticket{}, repository.ErrTicketNotFound
	}
	if t.Watched() {
		return model.Ticket{}, repository.ErrTicketAlreadyWatched
	}
	t.WatchedAt = &at
	m.db.tickets[ticketID] = t
	return t, nil
}

// recordingSink keeps every audit event.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

type sentNotification struct {
	recipient string
	template  string
	data      map[string]any
}

// recordingSender captures notifications; ok is what Send reports.
type recordingSender struct {
	mu   sync.Mutex
	ok   bool
	sent []sentNotification
}

func (s *recordingSender) Send(_ context.Context, recipient, template string, data map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentNotification{recipient, template, data})
	return s.ok
}

type recordingInvalidator struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
}

var errDBDown = errors.New("dial tcp 127.0.0.1:3306: connection refused")
