package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"BullionLedger/internal/event"
)

// EventRow is a durable staging row for a raised domain event.
type EventRow struct {
	EventID    uuid.UUID
	EventType  string
	Payload    []byte
	EnqueuedAt time.Time
}

// EventLog stages raised domain events in Postgres so fan-out survives
// a restart without re-committing ledger state: the ledger entry is
// already durable on its own, and the processed flag below gates
// re-dispatch.
type EventLog struct {
	db *sql.DB
}

func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// WriteBatch writes event rows with a multi-row INSERT. Writes are
// idempotent on event_id, so a retried batch never duplicates rows.
func (l *EventLog) WriteBatch(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO domain_events (event_id, event_type, payload, enqueued_at) VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*4)
	for i, r := range rows {
		base := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, r.EventID, r.EventType, r.Payload, r.EnqueuedAt)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_id) DO NOTHING"

	_, err := l.db.ExecContext(ctx, query, args...)
	return err
}

// MarkProcessed flips the durable processed flag for one event.
// Implements event.ProcessedMarker.
func (l *EventLog) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE domain_events
		SET processed = TRUE, processed_at = NOW()
		WHERE event_id = $1
	`, eventID)
	return err
}

// LoadUnprocessed rebuilds the typed events that were staged but not
// yet dispatched, in enqueue order, for reloading the queue on startup.
func (l *EventLog) LoadUnprocessed(ctx context.Context) ([]event.Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_type, payload FROM domain_events
		WHERE processed = FALSE
		ORDER BY enqueued_at, event_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var eventType string
		var payload []byte
		if err := rows.Scan(&eventType, &payload); err != nil {
			return nil, err
		}

		e, err := event.Decode(event.ParseType(eventType), payload)
		if err != nil {
			return nil, fmt.Errorf("decode staged event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ToRow converts a domain event into its staging row.
func ToRow(e event.Event) (EventRow, error) {
	payload, err := event.Marshal(e)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal event %s: %w", e.EventID(), err)
	}
	return EventRow{
		EventID:    e.EventID(),
		EventType:  e.EventType().String(),
		Payload:    payload,
		EnqueuedAt: e.OccurredAt(),
	}, nil
}
