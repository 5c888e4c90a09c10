package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
)

// Intake creates alerts from parsed webhook payloads with deduplication on
// the (source, external_id) natural key.
type Intake struct {
	client *ent.Client
	logger *slog.Logger
}

// NewIntake creates the intake service.
func NewIntake(client *ent.Client, logger *slog.Logger) *Intake {
	return &Intake{client: client, logger: logger}
}

// Record parses and persists a webhook payload. Returns the alert and whether
// it was newly created; a duplicate natural key returns the existing alert
// with created=false. New alerts enter the queue in the pending state.
func (i *Intake) Record(ctx context.Context, source string, payload map[string]any) (*ent.Alert, bool, error) {
	parsed, err := Parse(source, payload)
	if err != nil {
		return nil, false, err
	}

	existing, err := i.client.Alert.Query().
		Where(alert.Source(source), alert.ExternalID(parsed.ExternalID)).
		Only(ctx)
	if err == nil {
		i.logger.Info("Duplicate alert ignored",
			"source", source,
			"external_id", parsed.ExternalID,
			"alert_id", existing.ID)
		return existing, false, nil
	}
	if !ent.IsNotFound(err) {
		return nil, false, fmt.Errorf("failed to check for duplicate alert: %w", err)
	}

	created, err := i.client.Alert.Create().
		SetExternalID(parsed.ExternalID).
		SetSource(source).
		SetTitle(parsed.Title).
		SetMessage(parsed.Message).
		SetRawPayload(payload).
		SetAlertTimestamp(parsed.Timestamp).
		Save(ctx)
	if err != nil {
		// Two pods racing on the same natural key: the unique index wins,
		// re-read the row the other pod inserted.
		if ent.IsConstraintError(err) {
			existing, qerr := i.client.Alert.Query().
				Where(alert.Source(source), alert.ExternalID(parsed.ExternalID)).
				Only(ctx)
			if qerr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to create alert: %w", err)
	}

	i.logger.Info("Alert recorded",
		"source", source,
		"external_id", parsed.ExternalID,
		"alert_id", created.ID,
		"title", created.Title)
	return created, true, nil
}
