package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/ent/incidentaction"
	"github.com/opsrelay/opsrelay/pkg/models"
	testdb "github.com/opsrelay/opsrelay/test/database"
)

type recordingNotifier struct {
	incidentID int
	status     string
	user       string
	calls      int
}

func (r *recordingNotifier) StatusChanged(_ context.Context, incidentID int, status, user string) {
	r.incidentID = incidentID
	r.status = status
	r.user = user
	r.calls++
}

func TestIncidentService_UpdateStatus(t *testing.T) {
	client := testdb.NewTestClient(t)
	notifier := &recordingNotifier{}
	service := NewIncidentService(client.Client, notifier)
	ctx := context.Background()

	t.Run("walks the lifecycle and stamps timestamps", func(t *testing.T) {
		inc := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityError)

		result, err := service.UpdateStatus(ctx, inc.ID, "investigating", "alice")
		require.NoError(t, err)
		assert.False(t, result.NoChange)
		assert.Equal(t, "investigating", result.NewStatus)

		updated, err := client.Incident.Get(ctx, inc.ID)
		require.NoError(t, err)
		assert.Equal(t, incident.StatusInvestigating, updated.Status)
		require.NotNil(t, updated.TimeToAcknowledge)
		assert.Nil(t, updated.ResolvedAt)

		_, err = service.UpdateStatus(ctx, inc.ID, "resolved", "alice")
		require.NoError(t, err)
		updated, err = client.Incident.Get(ctx, inc.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.ResolvedAt)
		require.NotNil(t, updated.TimeToResolve)
		assert.Nil(t, updated.ClosedAt)

		_, err = service.UpdateStatus(ctx, inc.ID, "closed", "alice")
		require.NoError(t, err)
		updated, err = client.Incident.Get(ctx, inc.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.ClosedAt)

		// One status_change action per transition.
		actions, err := client.IncidentAction.Query().
			Where(incidentaction.IncidentIDEQ(inc.ID)).
			All(ctx)
		require.NoError(t, err)
		assert.Len(t, actions, 3)
		assert.Equal(t, incidentaction.ActionTypeStatusChange, actions[0].ActionType)
		assert.Equal(t, "alice", actions[0].User)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		inc := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityWarning)
		before := notifier.calls

		result, err := service.UpdateStatus(ctx, inc.ID, "open", "")
		require.NoError(t, err)
		assert.True(t, result.NoChange)

		// No action recorded and no event published.
		count, err := client.IncidentAction.Query().
			Where(incidentaction.IncidentIDEQ(inc.ID)).
			Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Equal(t, before, notifier.calls)
	})

	t.Run("rejects skips and reversals", func(t *testing.T) {
		inc := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityWarning)

		_, err := service.UpdateStatus(ctx, inc.ID, "resolved", "")
		require.Error(t, err)
		assert.True(t, IsInvalidTransitionError(err))
		assert.Contains(t, err.Error(), "Invalid status transition from open to resolved")

		closed := seedIncident(t, client.Client, incident.StatusClosed, incident.SeverityWarning)
		_, err = service.UpdateStatus(ctx, closed.ID, "open", "")
		assert.True(t, IsInvalidTransitionError(err))
	})

	t.Run("rejects unknown status values", func(t *testing.T) {
		inc := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityWarning)
		_, err := service.UpdateStatus(ctx, inc.ID, "escalated", "")
		assert.True(t, IsValidationError(err))
	})

	t.Run("missing incident", func(t *testing.T) {
		_, err := service.UpdateStatus(ctx, 999999, "investigating", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("notifies on committed transitions", func(t *testing.T) {
		inc := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityInfo)
		before := notifier.calls

		_, err := service.UpdateStatus(ctx, inc.ID, "investigating", "bob")
		require.NoError(t, err)
		assert.Equal(t, before+1, notifier.calls)
		assert.Equal(t, inc.ID, notifier.incidentID)
		assert.Equal(t, "investigating", notifier.status)
		assert.Equal(t, "bob", notifier.user)
	})
}

func TestIncidentService_ListIncidents(t *testing.T) {
	client := testdb.NewTestClient(t)
	service := NewIncidentService(client.Client, nil)
	ctx := context.Background()

	open := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityCritical)
	resolved := seedIncident(t, client.Client, incident.StatusResolved, incident.SeverityWarning)

	now := time.Now()
	seedAlert(t, client.Client, &open.ID, "datadog", "payments-api", now.Add(-10*time.Minute))
	seedAlert(t, client.Client, &open.ID, "sentry", "payments-api", now.Add(-2*time.Minute))
	seedAlert(t, client.Client, &resolved.ID, "pagerduty", "auth-api", now.Add(-time.Hour))

	t.Run("aggregates alert count and last alert", func(t *testing.T) {
		items, total, err := service.ListIncidents(ctx, models.IncidentFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 2)

		// Newest first.
		assert.Equal(t, resolved.ID, items[0].Incident.ID)
		assert.Equal(t, open.ID, items[1].Incident.ID)
		assert.Equal(t, 2, items[1].AlertCount)
		require.NotNil(t, items[1].LastAlertAt)
		assert.WithinDuration(t, now.Add(-2*time.Minute), *items[1].LastAlertAt, time.Second)
	})

	t.Run("filters by status and severity", func(t *testing.T) {
		items, total, err := service.ListIncidents(ctx, models.IncidentFilter{Status: "open"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, open.ID, items[0].Incident.ID)

		_, total, err = service.ListIncidents(ctx, models.IncidentFilter{Severity: "critical"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("filters by alert source", func(t *testing.T) {
		items, total, err := service.ListIncidents(ctx, models.IncidentFilter{Source: "pagerduty"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, resolved.ID, items[0].Incident.ID)
	})

	t.Run("filters by service via alerts", func(t *testing.T) {
		items, total, err := service.ListIncidents(ctx, models.IncidentFilter{Service: "payments-api"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, open.ID, items[0].Incident.ID)
	})

	t.Run("rejects invalid enum filters", func(t *testing.T) {
		_, _, err := service.ListIncidents(ctx, models.IncidentFilter{Status: "bogus"})
		assert.True(t, IsValidationError(err))
	})

	t.Run("pagination", func(t *testing.T) {
		items, total, err := service.ListIncidents(ctx, models.IncidentFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 1)
		assert.Equal(t, open.ID, items[0].Incident.ID)
	})
}

func TestIncidentService_GetIncident(t *testing.T) {
	client := testdb.NewTestClient(t)
	service := NewIncidentService(client.Client, nil)
	ctx := context.Background()

	inc := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityError)
	now := time.Now()
	older := seedAlert(t, client.Client, &inc.ID, "datadog", "db", now.Add(-time.Hour))
	newer := seedAlert(t, client.Client, &inc.ID, "datadog", "db", now)

	_, err := client.IncidentAction.Create().
		SetIncidentID(inc.ID).
		SetActionType(incidentaction.ActionTypeStatusChange).
		SetDescription("Incident created from alert ext-1").
		SetUser("system").
		Save(ctx)
	require.NoError(t, err)

	detail, err := service.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.AlertCount)

	// Alerts newest event first.
	require.Len(t, detail.Alerts, 2)
	assert.Equal(t, newer.ID, detail.Alerts[0].ID)
	assert.Equal(t, older.ID, detail.Alerts[1].ID)
	require.Len(t, detail.Actions, 1)

	_, err = service.GetIncident(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}
