package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region emit
// Emit appends an event to the event_log table. EventID and EmittedAt are
// filled in when empty.
func Emit(ctx context.Context, db *sql.DB, ev Event) (Event, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now().UTC()
	}
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO event_log (event_id, event_type, seu_id, payload_json, emitted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.EventID,
		ev.EventType,
		nullIfEmpty(ev.SEUID),
		string(payload),
		ev.EmittedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Event{}, fmt.Errorf("emit %s: %w", ev.EventType, err)
	}
	return ev, nil
}
// #endregion emit

// #region read
// RecentEvents returns the last limit events in emission order.
// A non-positive limit selects DefaultEventLimit.
func RecentEvents(ctx context.Context, db *sql.DB, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	events, err := queryEvents(ctx, db,
		`SELECT event_id, event_type, seu_id, payload_json, emitted_at
		 FROM event_log ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// EventsForSEU returns every event recorded for one SEU in emission order.
func EventsForSEU(ctx context.Context, db *sql.DB, seuID string) ([]Event, error) {
	return queryEvents(ctx, db,
		`SELECT event_id, event_type, seu_id, payload_json, emitted_at
		 FROM event_log WHERE seu_id = ? ORDER BY seq`, seuID,
	)
}

func queryEvents(ctx context.Context, db *sql.DB, query string, args ...any) ([]Event, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var seuID sql.NullString
		var payload, emitted string
		if err := rows.Scan(&ev.EventID, &ev.EventType, &seuID, &payload, &emitted); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if seuID.Valid {
			ev.SEUID = seuID.String
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		ev.EmittedAt, _ = time.Parse(time.RFC3339Nano, emitted)
		events = append(events, ev)
	}
	return events, rows.Err()
}
// #endregion read

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
