// Package audit records business events on a best-effort basis.  Recording
// never blocks the caller and never reports failure back to it: a purchase
// that succeeded in the database stays successful even if its audit trail
// is lost.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking/internal/logger"
)

// Actions recorded by the booking core.
const (
	ActionTicketPurchased = "ticket.purchased"
	ActionTicketWatched   = "ticket.watched"
	ActionSessionCreated  = "session.created"
	ActionSessionUpdated  = "session.updated"
	ActionSessionDeleted  = "session.deleted"
	ActionRoomCreated     = "room.created"
)

// Event is one audit log entry.
type Event struct {
	ID       string         `json:"id"`
	Action   string         `json:"action"`
	ActorID  uint64         `json:"actor_id"`
	Entity   string         `json:"entity"`
	EntityID uint64         `json:"entity_id"`
	Payload  map[string]any `json:"payload,omitempty"`
	At       time.Time      `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(action string, actorID uint64, entity string, entityID uint64, payload map[string]any) Event {
	return Event{
		ID:       uuid.NewString(),
		Action:   action,
		ActorID:  actorID,
		Entity:   entity,
		EntityID: entityID,
		Payload:  payload,
		At:       time.Now().UTC(),
	}
}

// Sink accepts events fire-and-forget.
type Sink interface {
	Record(e Event)
}

// Writer persists a single event.
type Writer interface {
	WriteEvent(ctx context.Context, e Event) error
}

// AsyncSink buffers events in memory and writes them from one background
// goroutine.  When the buffer is full new events are dropped and logged.
type AsyncSink struct {
	w       Writer
	ch      chan Event
	timeout time.Duration
	log     *logrus.Entry

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the writer goroutine.  Call Close to flush it.
func NewAsyncSink(w Writer, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		w:       w,
		ch:      make(chan Event, buffer),
		timeout: 3 * time.Second,
		log:     logger.WithComponent("audit"),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Record enqueues e without blocking.
func (s *AsyncSink) Record(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.WithField("action", e.Action).Warn("audit sink closed; event dropped")
		return
	}
	select {
	case s.ch <- e:
	default:
		s.log.WithFields(logrus.Fields{"action": e.Action, "entity_id": e.EntityID}).
			Warn("audit buffer full; event dropped")
	}
}

// Close stops accepting events and waits until the buffered ones have been
// written or ctx expires.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for e := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.w.WriteEvent(ctx, e); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"event_id":  e.ID,
				"action":    e.Action,
				"entity":    e.Entity,
				"entity_id": e.EntityID,
			}).Warn("audit write failed")
		}
		cancel()
	}
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(Event) {}
