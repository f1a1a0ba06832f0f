// Package ledger writes an append-only audit trail of number events to
// Postgres. It is optional and write-only: the bot never reads it back,
// so a nil Ledger or a failed insert never affects a rental.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/waygroup/numbot/core/logger"
	"log/slog"
)

// Action names the audited event kinds.
const (
	ActionPurchase  = "purchase"
	ActionRelease   = "release"
	ActionInboxRead = "inbox_read"
)

// Event is one audit row.
type Event struct {
	UserID    int64
	Action    string
	Number    string
	NumberSID string
}

// Ledger appends events to the number_events table.
type Ledger struct {
	db *sqlx.DB
}

// New wraps an open database handle. Pass nil db to disable auditing;
// the returned Ledger is still safe to call.
func New(db *sqlx.DB) *Ledger {
	if db == nil {
		return nil
	}
	return &Ledger{db: db}
}

const insertEvent = `
	INSERT INTO number_events (id, user_id, action, number, number_sid, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Record appends the event. Failures are logged and swallowed.
func (l *Ledger) Record(ctx context.Context, ev Event) {
	if l == nil || l.db == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, insertEvent,
		uuid.NewString(),
		ev.UserID,
		ev.Action,
		ev.Number,
		ev.NumberSID,
		time.Now().UTC(),
	)
	if err != nil {
		logger.SVCLedger.LogAttrs(ctx, slog.LevelWarn, "ledger.write_failed",
			slog.String("action", ev.Action),
			slog.Int64("user_id", ev.UserID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.SVCLedger.LogAttrs(ctx, slog.LevelDebug, "ledger.recorded",
		slog.String("action", ev.Action),
		slog.Int64("user_id", ev.UserID),
		slog.String("number", ev.Number),
	)
}
