package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/connector"
)

// defaultConnectors are the alert-source integrations seeded at startup.
var defaultConnectors = map[string]string{
	"datadog":   "Datadog",
	"sentry":    "Sentry",
	"pagerduty": "PagerDuty",
}

// ConnectorService manages the connection state of alert-source integrations.
type ConnectorService struct {
	client *ent.Client
}

// NewConnectorService creates a new ConnectorService.
func NewConnectorService(client *ent.Client) *ConnectorService {
	return &ConnectorService{client: client}
}

// Seed creates the default connectors if they do not exist yet. Existing
// rows keep their state.
func (s *ConnectorService) Seed(ctx context.Context) error {
	for id, name := range defaultConnectors {
		err := s.client.Connector.Create().
			SetID(id).
			SetName(name).
			SetStatus(connector.StatusNotConnected).
			OnConflictColumns(connector.FieldID).
			Ignore().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed connector %s: %w", id, err)
		}
	}
	slog.Debug("Connector seeding complete", "count", len(defaultConnectors))
	return nil
}

// ListConnectors returns all connectors ordered by name.
func (s *ConnectorService) ListConnectors(ctx context.Context) ([]*ent.Connector, error) {
	connectors, err := s.client.Connector.Query().
		Order(ent.Asc(connector.FieldName)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}
	return connectors, nil
}

// Connect marks a connector as connected. Connecting an already connected
// connector is a no-op.
func (s *ConnectorService) Connect(ctx context.Context, connectorID string) (*ent.Connector, error) {
	conn, err := s.client.Connector.Get(ctx, connectorID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}

	if conn.Status == connector.StatusConnected {
		return conn, nil
	}

	conn, err = conn.Update().
		SetStatus(connector.StatusConnected).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect connector: %w", err)
	}
	return conn, nil
}
