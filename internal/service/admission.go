package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking/internal/audit"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/notify"
)

// DefaultMaxTicketsPerPurchase bounds a purchase when no limit is configured.
const DefaultMaxTicketsPerPurchase = 10

const notifyTimeout = 5 * time.Second

// Admission sells tickets.  Seat capacity is enforced only by
// TicketStore.Reserve, a single conditional update in the store; nothing in
// this type reads the remaining capacity and then writes, so any number of
// API instances can sell the same session concurrently.
type Admission struct {
	sessions SessionStore
	movies   MovieStore
	users    UserStore
	rooms    RoomStore
	tickets  TicketStore
	audit    audit.Sink
	notifier notify.Sender
	maxQty   int
	now      func() time.Time
	log      *logrus.Entry

	mu      sync.Mutex // guards closed and pending.Add
	closed  bool
	pending sync.WaitGroup
}

// NewAdmission wires an Admission.  A nil sink or sender disables that side
// effect; maxQty <= 0 selects DefaultMaxTicketsPerPurchase.
func NewAdmission(sessions SessionStore, movies MovieStore, users UserStore, rooms RoomStore,
	tickets TicketStore, sink audit.Sink, sender notify.Sender, maxQty int) *Admission {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if sender == nil {
		sender = notify.NopSender{}
	}
	if maxQty <= 0 {
		maxQty = DefaultMaxTicketsPerPurchase
	}
	return &Admission{
		sessions: sessions,
		movies:   movies,
		users:    users,
		rooms:    rooms,
		tickets:  tickets,
		audit:    sink,
		notifier: sender,
		maxQty:   maxQty,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.WithComponent("admission"),
	}
}

// MaxPerPurchase is the largest quantity BuyTickets accepts.
func (a *Admission) MaxPerPurchase() int { return a.maxQty }

// BuyTickets admits quantity seats of sessionID for userID, all or nothing.
// Preconditions are checked in order and the first failure is returned:
// session exists, session has not started, movie exists, user exists, user
// meets the movie's minimum age, room exists.  A full session yields
// SoldOut with the seats that were still free.
//
// One audit event is recorded per ticket and a purchase notification is
// sent in the background.  Neither can fail the purchase.
func (a *Admission) BuyTickets(ctx context.Context, userID, sessionID uint64, quantity int) ([]model.Ticket, error) {
	if quantity < 1 || quantity > a.maxQty {
		return nil, validationError(fmt.Sprintf("quantity must be between 1 and %d", a.maxQty), nil)
	}

	session, err := a.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, a.fail("get session", err, userID, sessionID, quantity)
	}
	if session.IsPast(a.now()) {
		return nil, newError(KindSessionInPast, CodeSessionInPast, "session has already started")
	}
	movie, err := a.movies.GetByID(ctx, session.MovieID)
	if err != nil {
		return nil, a.fail("get movie", err, userID, sessionID, quantity)
	}
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, a.fail("get user", err, userID, sessionID, quantity)
	}
	if !user.MeetsAgeRestriction(movie) {
		return nil, newError(KindUnderage, CodeUnderage,
			fmt.Sprintf("movie requires age %d or older", movie.MinAge))
	}
	if _, err := a.rooms.GetByID(ctx, session.RoomID); err != nil {
		return nil, a.fail("get room", err, userID, sessionID, quantity)
	}

	tickets, err := a.tickets.Reserve(ctx, userID, sessionID, quantity)
	if err != nil {
		return nil, a.fail("reserve seats", err, userID, sessionID, quantity)
	}

	a.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"quantity":   quantity,
	}).Info("tickets purchased")

	for _, t := range tickets {
		a.audit.Record(audit.NewEvent(audit.ActionTicketPurchased, userID, "ticket", t.ID,
			map[string]any{"session_id": sessionID}))
	}
	a.notifyPurchase(ctx, user, movie, session, tickets)
	return tickets, nil
}

func (a *Admission) notifyPurchase(ctx context.Context, user model.User, movie model.Movie, session model.Session, tickets []model.Ticket) {
	ids := make([]uint64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	data := map[string]any{
		"user_name":   user.Name,
		"movie_title": movie.Title,
		"session_id":  session.ID,
		"date":        session.Date.Format(model.DateLayout),
		"time_slot":   string(session.Slot),
		"ticket_ids":  ids,
		"quantity":    len(tickets),
	}
	// Detached from the request so a client hanging up does not cancel it.
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.log.WithFields(logrus.Fields{"user_id": user.ID, "session_id": session.ID}).
			Warn("purchase notification skipped during shutdown")
		return
	}
	a.pending.Add(1)
	a.mu.Unlock()

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer a.pending.Done()
		defer cancel()
		if !a.notifier.Send(nctx, user.Email, notify.TemplateTicketsPurchased, data) {
			a.log.WithFields(logrus.Fields{"user_id": user.ID, "session_id": session.ID}).
				Warn("purchase notification not sent")
		}
	}()
}

// Wait stops new purchase notifications and blocks until the ones already
// started have finished.  Purchases made afterwards still succeed without
// a notification.
func (a *Admission) Wait() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.pending.Wait()
}

// ListMyTickets returns the tickets owned by userID, newest first.
func (a *Admission) ListMyTickets(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	tickets, err := a.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate("list tickets", err)
	}
	return tickets, nil
}

// WatchTicket marks one of the user's tickets as used.  A ticket owned by
// someone else is reported as not found; a second use is a Conflict.
func (a *Admission) WatchTicket(ctx context.Context, userID, ticketID uint64) (model.Ticket, error) {
	t, err := a.tickets.MarkWatched(ctx, ticketID, userID, a.now())
	if err != nil {
		return model.Ticket{}, translate("watch ticket", err)
	}
	a.audit.Record(audit.NewEvent(audit.ActionTicketWatched, userID, "ticket", t.ID,
		map[string]any{"session_id": t.SessionID}))
	return t, nil
}

// GetAvailability reports capacity and sold seats of a session.
func (a *Admission) GetAvailability(ctx context.Context, sessionID uint64) (model.Availability, error) {
	av, err := a.sessions.Availability(ctx, sessionID)
	if err != nil {
		return model.Availability{}, translate("get availability", err)
	}
	return av, nil
}

// fail translates err and logs it with purchase context when it is an
// infrastructure fault.
func (a *Admission) fail(op string, err error, userID, sessionID uint64, quantity int) error {
	out := translate(op, err)
	var se *Error
	if !errors.As(out, &se) {
		a.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
			"quantity":   quantity,
		}).Error(op + " failed")
	}
	return out
}
