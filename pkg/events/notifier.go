package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsrelay/opsrelay/ent"
)

// LifecycleNotifier bridges grouping outcomes to the event publisher.
// All methods are best-effort; failures are logged and swallowed so alert
// processing never fails on a notification.
type LifecycleNotifier struct {
	publisher *EventPublisher
}

// NewLifecycleNotifier creates a notifier backed by the publisher.
func NewLifecycleNotifier(publisher *EventPublisher) *LifecycleNotifier {
	return &LifecycleNotifier{publisher: publisher}
}

// IncidentCreated publishes an incident.created event.
func (n *LifecycleNotifier) IncidentCreated(ctx context.Context, inc *ent.Incident, a *ent.Alert) {
	payload := IncidentCreatedPayload{
		BasePayload: basePayload(EventTypeIncidentCreated, inc.ID),
		Title:       inc.Title,
		Severity:    string(inc.Severity),
		AlertID:     a.ID,
	}
	if inc.AssignedTeam != nil {
		payload.Team = *inc.AssignedTeam
	}
	err := n.publisher.PublishIncidentCreated(ctx, payload)
	if err != nil {
		slog.Warn("Failed to publish incident.created event",
			"incident_id", inc.ID, "alert_id", a.ID, "error", err)
	}
}

// AlertAdded publishes an incident.alert_added event.
func (n *LifecycleNotifier) AlertAdded(ctx context.Context, inc *ent.Incident, a *ent.Alert) {
	err := n.publisher.PublishAlertAdded(ctx, AlertAddedPayload{
		BasePayload: basePayload(EventTypeAlertAdded, inc.ID),
		AlertID:     a.ID,
		AlertTitle:  a.Title,
		Source:      string(a.Source),
	})
	if err != nil {
		slog.Warn("Failed to publish incident.alert_added event",
			"incident_id", inc.ID, "alert_id", a.ID, "error", err)
	}
}

// StatusChanged publishes an incident.status event.
func (n *LifecycleNotifier) StatusChanged(ctx context.Context, incidentID int, status, user string) {
	err := n.publisher.PublishIncidentStatus(ctx, IncidentStatusPayload{
		BasePayload: basePayload(EventTypeIncidentStatus, incidentID),
		Status:      status,
		User:        user,
	})
	if err != nil {
		slog.Warn("Failed to publish incident.status event",
			"incident_id", incidentID, "error", err)
	}
}

func basePayload(eventType string, incidentID int) BasePayload {
	return BasePayload{
		Type:       eventType,
		IncidentID: incidentID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}
