package api

import (
	"time"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/services"
)

// WebhookResponse acknowledges an accepted webhook delivery.
type WebhookResponse struct {
	Status     string `json:"status"`
	AlertID    int    `json:"alert_id"`
	ExternalID string `json:"external_id"`
}

// IncidentResponse is the incident list/detail representation, including the
// alert aggregates computed per request.
type IncidentResponse struct {
	ID               int        `json:"id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	Severity         string     `json:"severity"`
	AssignedTeam     *string    `json:"assigned_team"`
	AssignedUser     *string    `json:"assigned_user"`
	Summary          *string    `json:"summary"`
	AffectedServices []string   `json:"affected_services"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at"`
	ClosedAt         *time.Time `json:"closed_at"`
	AlertCount       int        `json:"alert_count"`
	LastAlertAt      *time.Time `json:"last_alert_at"`
}

// AlertResponse is the full alert representation including enrichment fields.
type AlertResponse struct {
	ID                   int               `json:"id"`
	ExternalID           string            `json:"external_id"`
	Source               string            `json:"source"`
	Title                string            `json:"title"`
	Message              string            `json:"message"`
	AlertTimestamp       time.Time         `json:"alert_timestamp"`
	Severity             *string           `json:"severity"`
	PredictedTeam        *string           `json:"predicted_team"`
	ConfidenceScore      *float64          `json:"confidence_score"`
	ClassificationSource *string           `json:"classification_source"`
	ServiceName          *string           `json:"service_name"`
	Environment          *string           `json:"environment"`
	Region               *string           `json:"region"`
	ErrorCode            *string           `json:"error_code"`
	EntitySource         *string           `json:"entity_source"`
	EntitySources        map[string]string `json:"entity_sources"`
	IncidentID           *int              `json:"incident_id"`
	CreatedAt            time.Time         `json:"created_at"`
}

// ActionResponse is one audit-trail entry.
type ActionResponse struct {
	ID            int            `json:"id"`
	ActionType    string         `json:"action_type"`
	Description   string         `json:"description"`
	User          string         `json:"user"`
	ExtraMetadata map[string]any `json:"extra_metadata"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ConnectorResponse is one integration connector.
type ConnectorResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ListResponse is the paginated envelope shared by the list endpoints.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// IncidentDetailResponse is the GET /incidents/:id payload.
type IncidentDetailResponse struct {
	Incident IncidentResponse `json:"incident"`
	Alerts   []AlertResponse  `json:"alerts"`
	Actions  []ActionResponse `json:"actions"`
}

// StatusUpdateResponse reports the outcome of a status transition request.
type StatusUpdateResponse struct {
	Status     string `json:"status"`
	IncidentID int    `json:"incident_id"`
	NewStatus  string `json:"new_status,omitempty"`
}

// SimilarIncidentResponse is one ranked match from similar-incident lookup.
type SimilarIncidentResponse struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	Status           string   `json:"status"`
	Severity         string   `json:"severity"`
	AffectedServices []string `json:"affected_services"`
	Score            float64  `json:"score"`
}

// SummarizeResponse is the POST /incidents/:id/summarize payload.
type SummarizeResponse struct {
	IncidentID int               `json:"incident_id"`
	Summary    string            `json:"summary"`
	Citations  []models.Citation `json:"citations"`
	NextSteps  []string          `json:"next_steps"`
	Cached     bool              `json:"cached"`
}

// RunbookMatchResponse is one ranked runbook chunk from search.
type RunbookMatchResponse struct {
	SourceDocument string  `json:"source_document"`
	ChunkIndex     int     `json:"chunk_index"`
	Title          *string `json:"title"`
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
}

// RunbookSearchResponse is the GET /runbooks/search payload.
type RunbookSearchResponse struct {
	Query   string                 `json:"query"`
	Results []RunbookMatchResponse `json:"results"`
}

// HealthCheck is one component's health entry.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	DBConnected bool                   `json:"db_connected"`
	Checks      map[string]HealthCheck `json:"checks"`
}

func serializeIncident(item services.IncidentListItem) IncidentResponse {
	inc := item.Incident
	affected := inc.AffectedServices
	if affected == nil {
		affected = []string{}
	}
	return IncidentResponse{
		ID:               inc.ID,
		Title:            inc.Title,
		Status:           string(inc.Status),
		Severity:         string(inc.Severity),
		AssignedTeam:     inc.AssignedTeam,
		AssignedUser:     inc.AssignedUser,
		Summary:          inc.Summary,
		AffectedServices: affected,
		CreatedAt:        inc.CreatedAt,
		UpdatedAt:        inc.UpdatedAt,
		ResolvedAt:       inc.ResolvedAt,
		ClosedAt:         inc.ClosedAt,
		AlertCount:       item.AlertCount,
		LastAlertAt:      item.LastAlertAt,
	}
}

func serializeAlert(a *ent.Alert) AlertResponse {
	var severity *string
	if a.Severity != nil {
		s := string(*a.Severity)
		severity = &s
	}
	return AlertResponse{
		ID:                   a.ID,
		ExternalID:           a.ExternalID,
		Source:               a.Source,
		Title:                a.Title,
		Message:              a.Message,
		AlertTimestamp:       a.AlertTimestamp,
		Severity:             severity,
		PredictedTeam:        a.PredictedTeam,
		ConfidenceScore:      a.ConfidenceScore,
		ClassificationSource: a.ClassificationSource,
		ServiceName:          a.ServiceName,
		Environment:          a.Environment,
		Region:               a.Region,
		ErrorCode:            a.ErrorCode,
		EntitySource:         a.EntitySource,
		EntitySources:        a.EntitySources,
		IncidentID:           a.IncidentID,
		CreatedAt:            a.CreatedAt,
	}
}

func serializeAlerts(alerts []*ent.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, serializeAlert(a))
	}
	return out
}

func serializeAction(a *ent.IncidentAction) ActionResponse {
	return ActionResponse{
		ID:            a.ID,
		ActionType:    string(a.ActionType),
		Description:   a.Description,
		User:          a.User,
		ExtraMetadata: a.ExtraMetadata,
		Timestamp:     a.Timestamp,
	}
}

func serializeConnector(c *ent.Connector) ConnectorResponse {
	return ConnectorResponse{
		ID:     c.ID,
		Name:   c.Name,
		Status: string(c.Status),
	}
}

func serializeSimilar(item retrieval.SimilarIncident) SimilarIncidentResponse {
	affected := item.Incident.AffectedServices
	if affected == nil {
		affected = []string{}
	}
	return SimilarIncidentResponse{
		ID:               item.Incident.ID,
		Title:            item.Incident.Title,
		Status:           string(item.Incident.Status),
		Severity:         string(item.Incident.Severity),
		AffectedServices: affected,
		Score:            item.Score,
	}
}

func serializeRunbookMatch(match retrieval.RunbookMatch) RunbookMatchResponse {
	return RunbookMatchResponse{
		SourceDocument: match.Chunk.SourceDocument,
		ChunkIndex:     match.Chunk.ChunkIndex,
		Title:          match.Chunk.Title,
		Content:        match.Chunk.Content,
		Score:          match.Score,
	}
}
