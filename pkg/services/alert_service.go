package services

import (
	"context"
	"fmt"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/ent/predicate"
	"github.com/opsrelay/opsrelay/pkg/models"
)

// AlertService serves the alert explorer.
type AlertService struct {
	client *ent.Client
}

// NewAlertService creates a new AlertService.
func NewAlertService(client *ent.Client) *AlertService {
	return &AlertService{client: client}
}

// ListAlerts returns filtered alerts newest first plus the unpaginated total.
func (s *AlertService) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*ent.Alert, int, error) {
	predicates, err := alertPredicates(filter)
	if err != nil {
		return nil, 0, err
	}

	base := s.client.Alert.Query().Where(predicates...)

	total, err := base.Clone().Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	alerts, err := base.
		Order(ent.Desc(alert.FieldCreatedAt)).
		Offset(filter.Offset).
		Limit(models.ClampLimit(filter.Limit)).
		All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, total, nil
}

// GetAlert returns one alert by id.
func (s *AlertService) GetAlert(ctx context.Context, alertID int) (*ent.Alert, error) {
	a, err := s.client.Alert.Get(ctx, alertID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

func alertPredicates(filter models.AlertFilter) ([]predicate.Alert, error) {
	var predicates []predicate.Alert

	if filter.Source != "" {
		predicates = append(predicates, alert.SourceEQ(filter.Source))
	}
	if filter.Severity != "" {
		severity := alert.Severity(filter.Severity)
		if err := alert.SeverityValidator(severity); err != nil {
			return nil, NewValidationError("severity", fmt.Sprintf("invalid value %q", filter.Severity))
		}
		predicates = append(predicates, alert.SeverityEQ(severity))
	}
	if filter.Service != "" {
		predicates = append(predicates, alert.ServiceNameEQ(filter.Service))
	}
	if filter.Environment != "" {
		predicates = append(predicates, alert.EnvironmentEQ(filter.Environment))
	}
	if filter.IncidentID != nil {
		predicates = append(predicates, alert.IncidentIDEQ(*filter.IncidentID))
	}
	if filter.CreatedFrom != nil {
		predicates = append(predicates, alert.CreatedAtGTE(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		predicates = append(predicates, alert.CreatedAtLTE(*filter.CreatedTo))
	}
	return predicates, nil
}
