package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EventPublisher publishes incident lifecycle events for SSE delivery.
// Events are stored in the events table then broadcast via NOTIFY; both
// happen in one transaction so the NOTIFY fires only on commit.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates a new EventPublisher.
// The db parameter should be the *sql.DB from database.Client.DB().
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// PublishIncidentCreated persists an incident.created event on the incident
// channel and broadcasts a transient copy to the global channel.
func (p *EventPublisher) PublishIncidentCreated(ctx context.Context, payload IncidentCreatedPayload) error {
	return p.publishToIncidentAndGlobal(ctx, payload.IncidentID, payload)
}

// PublishIncidentStatus persists an incident.status event on the incident
// channel and broadcasts a transient copy to the global channel.
func (p *EventPublisher) PublishIncidentStatus(ctx context.Context, payload IncidentStatusPayload) error {
	return p.publishToIncidentAndGlobal(ctx, payload.IncidentID, payload)
}

// PublishAlertAdded persists an incident.alert_added event on the incident
// channel and broadcasts a transient copy to the global channel.
func (p *EventPublisher) PublishAlertAdded(ctx context.Context, payload AlertAddedPayload) error {
	return p.publishToIncidentAndGlobal(ctx, payload.IncidentID, payload)
}

// CatchupEvent holds one stored event row for late subscribers.
type CatchupEvent struct {
	ID      int64
	Payload map[string]any
}

// CatchupEvents returns stored events on a channel after sinceID, oldest
// first, up to limit rows.
func (p *EventPublisher) CatchupEvents(ctx context.Context, channel string, sinceID int64, limit int) ([]CatchupEvent, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, payload FROM events WHERE channel = $1 AND id > $2 ORDER BY id ASC LIMIT $3`,
		channel, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("catchup query failed: %w", err)
	}
	defer rows.Close()

	var events []CatchupEvent
	for rows.Next() {
		var evt CatchupEvent
		var raw []byte
		if err := rows.Scan(&evt.ID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan catchup row: %w", err)
		}
		if err := json.Unmarshal(raw, &evt.Payload); err != nil {
			slog.Warn("Skipping malformed stored event", "event_id", evt.ID, "error", err)
			continue
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// publishToIncidentAndGlobal persists the event on the incident channel and
// broadcasts a transient copy globally. Both publishes are best-effort; the
// first error encountered is returned.
func (p *EventPublisher) publishToIncidentAndGlobal(ctx context.Context, incidentID int, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, incidentID, IncidentChannel(incidentID), payloadJSON); err != nil {
		slog.Warn("Failed to publish event to incident channel",
			"incident_id", incidentID, "error", err)
		firstErr = err
	}
	if err := p.notifyOnly(ctx, GlobalIncidentsChannel, payloadJSON); err != nil {
		slog.Warn("Failed to publish event to global channel",
			"incident_id", incidentID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// persistAndNotify persists a pre-marshaled event to the database and
// broadcasts via NOTIFY in a single transaction (pg_notify is transactional,
// held until COMMIT).
func (p *EventPublisher) persistAndNotify(ctx context.Context, incidentID int, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (channel, incident_id, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		channel, incidentID, payloadJSON, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}
	return nil
}

// notifyOnly broadcasts a pre-marshaled event via NOTIFY without persisting.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for NOTIFY
// delivery and applies truncation if the result exceeds PostgreSQL's limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}
	return truncateIfNeeded(string(enriched))
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope carrying only
// the routing fields a client needs to fetch the full event via catchup.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type       string `json:"type"`
		IncidentID int    `json:"incident_id"`
		DBEventID  *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":        routing.Type,
		"incident_id": routing.IncidentID,
		"truncated":   true,
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
