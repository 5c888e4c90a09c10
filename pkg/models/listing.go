package models

import "time"

// Listing limits shared by the incident and alert explorers.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ClampLimit normalizes a requested page size into [1, MaxListLimit],
// defaulting when unset.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// IncidentFilter narrows the incident listing. Zero values mean "no filter".
type IncidentFilter struct {
	Status      string
	Severity    string
	Service     string
	Team        string
	Source      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	Limit       int
	Offset      int
}

// AlertFilter narrows the alert listing. Zero values mean "no filter".
type AlertFilter struct {
	Source      string
	Severity    string
	Service     string
	Environment string
	IncidentID  *int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// DashboardMetrics is the operations overview snapshot. The mean-time
// aggregates are nil until at least one incident carries the underlying
// timestamps.
type DashboardMetrics struct {
	ActiveIncidents   int  `json:"active_incidents"`
	CriticalIncidents int  `json:"critical_incidents"`
	UntriagedAlerts   int  `json:"untriaged_alerts"`
	MTTAMinutes       *int `json:"mtta_minutes"`
	MTTRMinutes       *int `json:"mttr_minutes"`
}

// RunbookIndexItem is one document entry in the runbook catalog, aggregated
// from its chunks.
type RunbookIndexItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Source      string     `json:"source"`
	Tags        []string   `json:"tags"`
	LastUpdated *time.Time `json:"last_updated"`
}
