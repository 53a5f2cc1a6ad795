package model

import "time"

// Ticket is one admitted seat.  A purchase of N seats creates N tickets so
// that each seat has its own lifecycle (for example being watched).
type Ticket struct {
	ID          uint64     `json:"id"`                   // tickets.id
	UserID      uint64     `json:"user_id"`              // tickets.user_id
	SessionID   uint64     `json:"session_id"`           // tickets.session_id
	PurchasedAt time.Time  `json:"purchased_at"`         // tickets.purchased_at
	WatchedAt   *time.Time `json:"watched_at,omitempty"` // tickets.watched_at (nullable)
}

// Watched reports whether the ticket has been used.
func (t Ticket) Watched() bool { return t.WatchedAt != nil }
