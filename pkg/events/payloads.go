// Package events persists incident lifecycle events and broadcasts them over
// PostgreSQL NOTIFY for real-time SSE delivery. Persistence and NOTIFY happen
// in one transaction so subscribers can catch up from the events table using
// the last event id they saw.
package events

import "fmt"

// Event type constants carried in the payload "type" field.
const (
	EventTypeIncidentCreated = "incident.created"
	EventTypeIncidentStatus  = "incident.status"
	EventTypeAlertAdded      = "incident.alert_added"
)

// GlobalIncidentsChannel receives every incident lifecycle event, for the
// dashboard live feed.
const GlobalIncidentsChannel = "incidents_events"

// IncidentChannel returns the NOTIFY channel for one incident.
func IncidentChannel(incidentID int) string {
	return fmt.Sprintf("incident_%d_events", incidentID)
}

// BasePayload carries the fields common to all event payloads.
type BasePayload struct {
	Type       string `json:"type"`
	IncidentID int    `json:"incident_id"`
	Timestamp  string `json:"timestamp"`
}

// IncidentCreatedPayload announces a new incident opened by the grouping
// engine.
type IncidentCreatedPayload struct {
	BasePayload
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Team     string `json:"team,omitempty"`
	AlertID  int    `json:"alert_id"`
}

// IncidentStatusPayload announces a lifecycle status transition.
type IncidentStatusPayload struct {
	BasePayload
	Status string `json:"status"`
	User   string `json:"user,omitempty"`
}

// AlertAddedPayload announces an alert grouped into an existing incident.
type AlertAddedPayload struct {
	BasePayload
	AlertID    int    `json:"alert_id"`
	AlertTitle string `json:"alert_title"`
	Source     string `json:"source"`
}
