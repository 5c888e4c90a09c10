package services

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/ent/incidentaction"
	"github.com/opsrelay/opsrelay/ent/predicate"
	"github.com/opsrelay/opsrelay/pkg/models"
)

// allowedTransitions is the incident lifecycle DAG. No skips, no reversals.
var allowedTransitions = map[incident.Status]incident.Status{
	incident.StatusOpen:          incident.StatusInvestigating,
	incident.StatusInvestigating: incident.StatusResolved,
	incident.StatusResolved:      incident.StatusClosed,
}

// StatusNotifier receives committed status transitions for real-time delivery.
// Implementations must be best-effort; a status update never fails on a
// notification.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, incidentID int, status, user string)
}

// IncidentService manages incident review and lifecycle transitions.
type IncidentService struct {
	client   *ent.Client
	notifier StatusNotifier
}

// NewIncidentService creates a new IncidentService. notifier may be nil.
func NewIncidentService(client *ent.Client, notifier StatusNotifier) *IncidentService {
	return &IncidentService{client: client, notifier: notifier}
}

// IncidentListItem is one incident with its alert aggregates.
type IncidentListItem struct {
	Incident    *ent.Incident
	AlertCount  int
	LastAlertAt *time.Time
}

// IncidentDetail is a full incident view with its grouped alerts (newest
// event first) and audit trail (newest first).
type IncidentDetail struct {
	IncidentListItem
	Alerts  []*ent.Alert
	Actions []*ent.IncidentAction
}

// StatusUpdate reports the outcome of a lifecycle transition.
type StatusUpdate struct {
	IncidentID int
	NewStatus  string
	NoChange   bool
}

// ListIncidents returns filtered incidents newest first, with alert
// aggregates, plus the unpaginated total.
func (s *IncidentService) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]IncidentListItem, int, error) {
	predicates, err := incidentPredicates(filter)
	if err != nil {
		return nil, 0, err
	}

	base := s.client.Incident.Query().Where(predicates...)

	total, err := base.Clone().Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	incidents, err := base.
		Order(ent.Desc(incident.FieldCreatedAt)).
		Offset(filter.Offset).
		Limit(models.ClampLimit(filter.Limit)).
		All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents: %w", err)
	}

	aggregates, err := s.alertAggregates(ctx, incidentIDs(incidents))
	if err != nil {
		return nil, 0, err
	}

	items := make([]IncidentListItem, len(incidents))
	for i, inc := range incidents {
		agg := aggregates[inc.ID]
		items[i] = IncidentListItem{
			Incident:    inc,
			AlertCount:  agg.count,
			LastAlertAt: agg.lastAlertAt,
		}
	}
	return items, total, nil
}

// GetIncident returns one incident with aggregates, grouped alerts and the
// audit trail.
func (s *IncidentService) GetIncident(ctx context.Context, incidentID int) (*IncidentDetail, error) {
	inc, err := s.client.Incident.Get(ctx, incidentID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	aggregates, err := s.alertAggregates(ctx, []int{inc.ID})
	if err != nil {
		return nil, err
	}

	alerts, err := s.client.Alert.Query().
		Where(alert.IncidentIDEQ(inc.ID)).
		Order(ent.Desc(alert.FieldAlertTimestamp)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident alerts: %w", err)
	}

	actions, err := s.client.IncidentAction.Query().
		Where(incidentaction.IncidentIDEQ(inc.ID)).
		Order(ent.Desc(incidentaction.FieldTimestamp)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident actions: %w", err)
	}

	agg := aggregates[inc.ID]
	return &IncidentDetail{
		IncidentListItem: IncidentListItem{
			Incident:    inc,
			AlertCount:  agg.count,
			LastAlertAt: agg.lastAlertAt,
		},
		Alerts:  alerts,
		Actions: actions,
	}, nil
}

// UpdateStatus applies a lifecycle transition, stamps resolved_at/closed_at
// and the SLA counters, and appends the audit action in one transaction.
// Setting the current status again is a no-op rather than an error.
func (s *IncidentService) UpdateStatus(ctx context.Context, incidentID int, newStatus, user string) (*StatusUpdate, error) {
	target := incident.Status(newStatus)
	if err := incident.StatusValidator(target); err != nil {
		return nil, NewValidationError("status", fmt.Sprintf("invalid value %q", newStatus))
	}
	if user == "" {
		user = "system"
	}

	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inc, err := tx.Incident.Query().
		Where(incident.IDEQ(incidentID)).
		ForUpdate().
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}

	if inc.Status == target {
		return &StatusUpdate{IncidentID: inc.ID, NewStatus: string(target), NoChange: true}, nil
	}
	if allowedTransitions[inc.Status] != target {
		return nil, &InvalidTransitionError{From: string(inc.Status), To: string(target)}
	}

	now := time.Now()
	update := tx.Incident.UpdateOne(inc).SetStatus(target)
	switch target {
	case incident.StatusInvestigating:
		if inc.TimeToAcknowledge == nil {
			update.SetTimeToAcknowledge(int(now.Sub(inc.CreatedAt).Seconds()))
		}
	case incident.StatusResolved:
		update.SetResolvedAt(now)
		if inc.TimeToResolve == nil {
			update.SetTimeToResolve(int(now.Sub(inc.CreatedAt).Seconds()))
		}
	case incident.StatusClosed:
		update.SetClosedAt(now)
	}
	if _, err := update.Save(ctx); err != nil {
		return nil, fmt.Errorf("failed to update incident status: %w", err)
	}

	_, err = tx.IncidentAction.Create().
		SetIncidentID(inc.ID).
		SetActionType(incidentaction.ActionTypeStatusChange).
		SetDescription(fmt.Sprintf("Status changed from %s to %s", inc.Status, target)).
		SetUser(user).
		SetExtraMetadata(map[string]any{"from": string(inc.Status), "to": string(target)}).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record status change action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	if s.notifier != nil {
		s.notifier.StatusChanged(ctx, inc.ID, string(target), user)
	}
	return &StatusUpdate{IncidentID: inc.ID, NewStatus: string(target)}, nil
}

type alertAggregate struct {
	count       int
	lastAlertAt *time.Time
}

// alertAggregates returns per-incident alert count and last alert timestamp
// in one grouped query.
func (s *IncidentService) alertAggregates(ctx context.Context, ids []int) (map[int]alertAggregate, error) {
	result := make(map[int]alertAggregate, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []struct {
		IncidentID int       `json:"incident_id"`
		Count      int       `json:"count"`
		Last       time.Time `json:"max"`
	}
	err := s.client.Alert.Query().
		Where(alert.IncidentIDIn(ids...)).
		GroupBy(alert.FieldIncidentID).
		Aggregate(ent.Count(), ent.Max(alert.FieldAlertTimestamp)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate incident alerts: %w", err)
	}

	for _, row := range rows {
		last := row.Last
		result[row.IncidentID] = alertAggregate{count: row.Count, lastAlertAt: &last}
	}
	return result, nil
}

// incidentPredicates translates a filter into typed predicates, validating
// the enum values up front.
func incidentPredicates(filter models.IncidentFilter) ([]predicate.Incident, error) {
	var predicates []predicate.Incident

	if filter.Status != "" {
		status := incident.Status(filter.Status)
		if err := incident.StatusValidator(status); err != nil {
			return nil, NewValidationError("status", fmt.Sprintf("invalid value %q", filter.Status))
		}
		predicates = append(predicates, incident.StatusEQ(status))
	}
	if filter.Severity != "" {
		severity := incident.Severity(filter.Severity)
		if err := incident.SeverityValidator(severity); err != nil {
			return nil, NewValidationError("severity", fmt.Sprintf("invalid value %q", filter.Severity))
		}
		predicates = append(predicates, incident.SeverityEQ(severity))
	}
	if filter.Team != "" {
		predicates = append(predicates, incident.AssignedTeamEQ(filter.Team))
	}
	if filter.CreatedFrom != nil {
		predicates = append(predicates, incident.CreatedAtGTE(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		predicates = append(predicates, incident.CreatedAtLTE(*filter.CreatedTo))
	}
	if filter.UpdatedFrom != nil {
		predicates = append(predicates, incident.UpdatedAtGTE(*filter.UpdatedFrom))
	}
	if filter.UpdatedTo != nil {
		predicates = append(predicates, incident.UpdatedAtLTE(*filter.UpdatedTo))
	}
	if filter.Source != "" {
		predicates = append(predicates, incident.HasAlertsWith(alert.SourceEQ(filter.Source)))
	}
	if filter.Service != "" {
		predicates = append(predicates, incident.Or(
			func(s *sql.Selector) {
				s.Where(sqljson.ValueContains(incident.FieldAffectedServices, filter.Service))
			},
			incident.HasAlertsWith(alert.ServiceNameEQ(filter.Service)),
		))
	}
	return predicates, nil
}

func incidentIDs(incidents []*ent.Incident) []int {
	ids := make([]int, len(incidents))
	for i, inc := range incidents {
		ids[i] = inc.ID
	}
	return ids
}
