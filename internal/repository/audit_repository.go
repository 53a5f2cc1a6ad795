package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/cinema-booking/internal/audit"
)

// AuditRepo appends audit events to the audit_logs table.  It is the
// Writer behind audit.AsyncSink.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// WriteEvent inserts one event.
func (r *AuditRepo) WriteEvent(ctx context.Context, e audit.Event) error {
	var payload any
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	const q = `INSERT INTO audit_logs (event_id, action, actor_id, entity, entity_id, payload, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.Action, e.ActorID, e.Entity, e.EntityID, payload, e.At)
	return err
}
