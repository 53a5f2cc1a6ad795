package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// TicketRepo owns ticket rows and the sold_seats counter of sessions.
// Seats are only ever admitted through Reserve.
type TicketRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const ticketColumns = `id, user_id, session_id, purchased_at, watched_at`

func scanTicket(row rowScanner) (model.Ticket, error) {
	var t model.Ticket
	var watched sql.NullTime
	if err := row.Scan(&t.ID, &t.UserID, &t.SessionID, &t.PurchasedAt, &watched); err != nil {
		return model.Ticket{}, err
	}
	if watched.Valid {
		w := watched.Time
		t.WatchedAt = &w
	}
	return t, nil
}

// Reserve admits quantity seats for userID on sessionID, all or nothing.
//
// The capacity check and the counter increment are one statement:
//
//	UPDATE sessions ... SET sold_seats = sold_seats + q
//	WHERE id = ? AND sold_seats + q <= capacity
//
// InnoDB evaluates the predicate under the row lock it takes for the
// update, so concurrent purchasers are serialized on the session row and
// the counter can never pass the room capacity.  The ticket rows are
// inserted in the same transaction; if anything fails the counter
// increment rolls back with them.  A failed predicate returns a
// *SoldOutError carrying the seats still free at that moment.
func (r *TicketRepo) Reserve(ctx context.Context, userID, sessionID uint64, quantity int) ([]model.Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const reserve = `UPDATE sessions s
                     JOIN rooms r ON r.id = s.room_id
                     SET s.sold_seats = s.sold_seats + ?
                     WHERE s.id = ? AND s.sold_seats + ? <= r.capacity`
	res, err := tx.ExecContext(ctx, reserve, quantity, sessionID, quantity)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, r.soldOut(ctx, tx, sessionID, quantity)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tickets (user_id, session_id, purchased_at) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	purchasedAt := r.now().Truncate(time.Second)
	tickets := make([]model.Ticket, 0, quantity)
	for i := 0; i < quantity; i++ {
		res, err := stmt.ExecContext(ctx, userID, sessionID, purchasedAt)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, model.Ticket{
			ID:          uint64(id),
			UserID:      userID,
			SessionID:   sessionID,
			PurchasedAt: purchasedAt,
		})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return tickets, nil
}

// soldOut builds the error for a rejected admission.  The availability it
// reports is best-effort: it is read after the failed update and may
// already be stale when the caller sees it.
func (r *TicketRepo) soldOut(ctx context.Context, tx *sql.Tx, sessionID uint64, quantity int) error {
	const q = `SELECT r.capacity, s.sold_seats
               FROM sessions s
               JOIN rooms r ON r.id = s.room_id
               WHERE s.id = ?`
	var capacity, sold int
	if err := tx.QueryRowContext(ctx, q, sessionID).Scan(&capacity, &sold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	available := capacity - sold
	if available < 0 {
		available = 0
	}
	return &SoldOutError{Requested: quantity, Available: available}
}

// GetByID returns a ticket by id.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ticket{}, ErrTicketNotFound
		}
		return model.Ticket{}, err
	}
	return t, nil
}

// ListByUser returns all tickets of a user, newest first.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = ? ORDER BY purchased_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkWatched stamps watched_at on a ticket owned by userID.  It returns
// ErrTicketNotFound when the ticket does not exist or belongs to someone
// else and ErrTicketAlreadyWatched when it was used before.
func (r *TicketRepo) MarkWatched(ctx context.Context, ticketID, userID uint64, at time.Time) (model.Ticket, error) {
	const q = `UPDATE tickets SET watched_at = ? WHERE id = ? AND user_id = ? AND watched_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, at.UTC().Truncate(time.Second), ticketID, userID)
	if err != nil {
		return model.Ticket{}, err
	}
	n, _ := res.RowsAffected()
	t, err := r.GetByID(ctx, ticketID)
	if err != nil {
		return model.Ticket{}, err
	}
	if t.UserID != userID {
		return model.Ticket{}, ErrTicketNotFound
	}
	if n == 0 {
		return model.Ticket{}, ErrTicketAlreadyWatched
	}
	return t, nil
}
