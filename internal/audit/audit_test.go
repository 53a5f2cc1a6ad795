package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (w *recordingWriter) WriteEvent(_ context.Context, e Event) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	return w.err
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(ActionTicketPurchased, 7, "ticket", 42, map[string]any{"session_id": 3})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, ActionTicketPurchased, e.Action)
	assert.Equal(t, uint64(7), e.ActorID)
	assert.Equal(t, uint64(42), e.EntityID)
	assert.WithinDuration(t, time.Now().UTC(), e.At, time.Second)

	other := NewEvent(ActionTicketPurchased, 7, "ticket", 42, nil)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestAsyncSink_WritesAndFlushesOnClose(t *testing.T) {
	w := &recordingWriter{}
	s := NewAsyncSink(w, 16)

	for i := 0; i < 5; i++ {
		s.Record(NewEvent(ActionTicketPurchased, 1, "ticket", uint64(i+1), nil))
	}
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 5, w.count())
}

func TestAsyncSink_WriterErrorsAreSwallowed(t *testing.T) {
	w := &recordingWriter{err: errors.New("db down")}
	s := NewAsyncSink(w, 4)

	assert.NotPanics(t, func() {
		s.Record(NewEvent(ActionTicketPurchased, 1, "ticket", 1, nil))
	})
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, w.count())
}

func TestAsyncSink_RecordNeverBlocksWhenFull(t *testing.T) {
	w := &recordingWriter{block: make(chan struct{})}
	s := NewAsyncSink(w, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.Record(NewEvent(ActionTicketPurchased, 1, "ticket", uint64(i), nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}
	close(w.block)
	require.NoError(t, s.Close(context.Background()))
	assert.LessOrEqual(t, w.count(), 2, "at most one in flight plus one buffered")
}

func TestAsyncSink_RecordAfterClose(t *testing.T) {
	w := &recordingWriter{}
	s := NewAsyncSink(w, 4)
	require.NoError(t, s.Close(context.Background()))

	assert.NotPanics(t, func() {
		s.Record(NewEvent(ActionTicketPurchased, 1, "ticket", 1, nil))
	})
	assert.Equal(t, 0, w.count())
	require.NoError(t, s.Close(context.Background()), "close is idempotent")
}
