package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/ent/incidentaction"
)

// GroupingWindow is how far back from the alert's event time an open incident
// may have been created and still receive the alert.
const GroupingWindow = 5 * time.Minute

// GroupResult reports the grouping outcome for one alert.
type GroupResult struct {
	Incident *ent.Incident
	Created  bool
}

// Grouper attaches enriched alerts to incidents under the time-window policy:
// the newest incident created within the window and still open or
// investigating receives the alert; otherwise a new incident is opened.
type Grouper struct {
	client *ent.Client
	logger *slog.Logger
}

// NewGrouper creates a grouper.
func NewGrouper(client *ent.Client, logger *slog.Logger) *Grouper {
	return &Grouper{client: client, logger: logger}
}

// Group runs the grouping decision in a single transaction. Candidate
// incidents are locked so concurrent workers serialize their
// affected_services updates instead of losing them.
func (g *Grouper) Group(ctx context.Context, a *ent.Alert) (*GroupResult, error) {
	tx, err := g.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start grouping transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	windowStart := a.AlertTimestamp.Add(-GroupingWindow)

	target, err := tx.Incident.Query().
		Where(
			incident.StatusIn(incident.StatusOpen, incident.StatusInvestigating),
			incident.CreatedAtGTE(windowStart),
		).
		Order(ent.Desc(incident.FieldCreatedAt)).
		Limit(1).
		ForUpdate().
		First(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return nil, fmt.Errorf("failed to query candidate incidents: %w", err)
	}

	var result *GroupResult
	if target != nil {
		result, err = g.attachToIncident(ctx, tx, target, a)
	} else {
		result, err = g.createIncident(ctx, tx, a)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit grouping: %w", err)
	}
	return result, nil
}

func (g *Grouper) attachToIncident(ctx context.Context, tx *ent.Tx, target *ent.Incident, a *ent.Alert) (*GroupResult, error) {
	if err := tx.Alert.UpdateOneID(a.ID).SetIncidentID(target.ID).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to link alert to incident: %w", err)
	}

	affected := target.AffectedServices
	if affected == nil {
		affected = []string{}
	}
	if a.ServiceName != nil && !containsString(affected, *a.ServiceName) {
		affected = append(affected, *a.ServiceName)
	}

	updated, err := tx.Incident.UpdateOneID(target.ID).
		SetAffectedServices(affected).
		SetUpdatedAt(time.Now()).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update incident: %w", err)
	}

	var severity any
	if a.Severity != nil {
		severity = string(*a.Severity)
	}
	_, err = tx.IncidentAction.Create().
		SetIncidentID(target.ID).
		SetActionType(incidentaction.ActionTypeAlertAdded).
		SetDescription(fmt.Sprintf("Alert %s (%s) grouped into incident", a.ExternalID, a.Title)).
		SetUser("system").
		SetExtraMetadata(map[string]any{
			"alert_id": a.ID,
			"source":   a.Source,
			"severity": severity,
		}).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record alert_added action: %w", err)
	}

	g.logger.Info("Alert grouped into existing incident",
		"alert_id", a.ID,
		"incident_id", target.ID,
		"incident_created_at", target.CreatedAt)
	return &GroupResult{Incident: updated, Created: false}, nil
}

func (g *Grouper) createIncident(ctx context.Context, tx *ent.Tx, a *ent.Alert) (*GroupResult, error) {
	severity := incident.SeverityWarning
	if a.Severity != nil {
		severity = incident.Severity(*a.Severity)
	}

	team := "unassigned"
	if a.PredictedTeam != nil && *a.PredictedTeam != "" {
		team = *a.PredictedTeam
	}

	affected := []string{}
	if a.ServiceName != nil && *a.ServiceName != "" {
		affected = append(affected, *a.ServiceName)
	}

	created, err := tx.Incident.Create().
		SetTitle(a.Title).
		SetSeverity(severity).
		SetStatus(incident.StatusOpen).
		SetAssignedTeam(team).
		SetAffectedServices(affected).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	if err := tx.Alert.UpdateOneID(a.ID).SetIncidentID(created.ID).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to link alert to new incident: %w", err)
	}

	_, err = tx.IncidentAction.Create().
		SetIncidentID(created.ID).
		SetActionType(incidentaction.ActionTypeStatusChange).
		SetDescription(fmt.Sprintf("Incident created from alert %s", a.ExternalID)).
		SetUser("system").
		SetExtraMetadata(map[string]any{
			"trigger":     "auto_grouping",
			"alert_id":    a.ID,
			"alert_count": 1,
		}).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record creation action: %w", err)
	}

	g.logger.Info("Created new incident for alert",
		"alert_id", a.ID,
		"incident_id", created.ID)
	return &GroupResult{Incident: created, Created: true}, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
