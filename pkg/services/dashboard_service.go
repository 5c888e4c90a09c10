package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/pkg/models"
)

// DashboardService computes the operations overview metrics.
type DashboardService struct {
	client *ent.Client
	db     *sql.DB
}

// NewDashboardService creates a new DashboardService. db is the raw
// connection used for the interval arithmetic ent cannot express.
func NewDashboardService(client *ent.Client, db *sql.DB) *DashboardService {
	return &DashboardService{client: client, db: db}
}

// Metrics returns the dashboard snapshot: open workload counts and mean
// time to acknowledge/resolve in whole minutes.
func (s *DashboardService) Metrics(ctx context.Context) (*models.DashboardMetrics, error) {
	active, err := s.client.Incident.Query().
		Where(incident.StatusNotIn(incident.StatusResolved, incident.StatusClosed)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active incidents: %w", err)
	}

	critical, err := s.client.Incident.Query().
		Where(
			incident.SeverityEQ(incident.SeverityCritical),
			incident.StatusNotIn(incident.StatusResolved, incident.StatusClosed),
		).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count critical incidents: %w", err)
	}

	untriaged, err := s.client.Alert.Query().
		Where(alert.IncidentIDIsNil()).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count untriaged alerts: %w", err)
	}

	mtta, err := s.meanSeconds(ctx,
		`SELECT AVG(time_to_acknowledge) FROM incidents WHERE time_to_acknowledge IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute MTTA: %w", err)
	}

	// Incidents resolved before the counter existed fall back to the
	// closed/resolved timestamp delta.
	mttr, err := s.meanSeconds(ctx,
		`SELECT AVG(COALESCE(
			time_to_resolve,
			EXTRACT(EPOCH FROM COALESCE(closed_at, resolved_at) - created_at)
		))
		FROM incidents
		WHERE COALESCE(closed_at, resolved_at) IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute MTTR: %w", err)
	}

	return &models.DashboardMetrics{
		ActiveIncidents:   active,
		CriticalIncidents: critical,
		UntriagedAlerts:   untriaged,
		MTTAMinutes:       toWholeMinutes(mtta),
		MTTRMinutes:       toWholeMinutes(mttr),
	}, nil
}

// meanSeconds runs an AVG query returning NULL when no rows qualify.
func (s *DashboardService) meanSeconds(ctx context.Context, query string) (*float64, error) {
	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query).Scan(&avg); err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

func toWholeMinutes(seconds *float64) *int {
	if seconds == nil {
		return nil
	}
	minutes := int(math.Round(*seconds / 60.0))
	return &minutes
}
