package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent/incident"
	testdb "github.com/opsrelay/opsrelay/test/database"
)

func TestDashboardService_Metrics(t *testing.T) {
	client := testdb.NewTestClient(t)
	service := NewDashboardService(client.Client, client.DB())
	ctx := context.Background()

	t.Run("empty database", func(t *testing.T) {
		metrics, err := service.Metrics(ctx)
		require.NoError(t, err)
		assert.Zero(t, metrics.ActiveIncidents)
		assert.Zero(t, metrics.CriticalIncidents)
		assert.Zero(t, metrics.UntriagedAlerts)
		assert.Nil(t, metrics.MTTAMinutes)
		assert.Nil(t, metrics.MTTRMinutes)
	})

	t.Run("counts and means", func(t *testing.T) {
		openCritical := seedIncident(t, client.Client, incident.StatusOpen, incident.SeverityCritical)
		seedIncident(t, client.Client, incident.StatusInvestigating, incident.SeverityWarning)
		resolvedCritical := seedIncident(t, client.Client, incident.StatusResolved, incident.SeverityCritical)

		// 300 s to acknowledge, 1800 s to resolve.
		err := client.Incident.UpdateOneID(resolvedCritical.ID).
			SetTimeToAcknowledge(300).
			SetTimeToResolve(1800).
			SetResolvedAt(time.Now()).
			Exec(ctx)
		require.NoError(t, err)

		// Closed incident without counters: MTTR falls back to the
		// timestamp delta (~3600 s).
		closed := seedIncident(t, client.Client, incident.StatusClosed, incident.SeverityError)
		err = client.Incident.UpdateOneID(closed.ID).
			SetClosedAt(closed.CreatedAt.Add(time.Hour)).
			Exec(ctx)
		require.NoError(t, err)

		seedAlert(t, client.Client, &openCritical.ID, "datadog", "db", time.Now())
		seedAlert(t, client.Client, nil, "sentry", "auth", time.Now())
		seedAlert(t, client.Client, nil, "sentry", "auth", time.Now())

		metrics, err := service.Metrics(ctx)
		require.NoError(t, err)

		// Resolved and closed incidents do not count as active.
		assert.Equal(t, 2, metrics.ActiveIncidents)
		assert.Equal(t, 1, metrics.CriticalIncidents)
		assert.Equal(t, 2, metrics.UntriagedAlerts)

		require.NotNil(t, metrics.MTTAMinutes)
		assert.Equal(t, 5, *metrics.MTTAMinutes)

		// Mean of 1800 and ~3600 seconds, rounded to whole minutes.
		require.NotNil(t, metrics.MTTRMinutes)
		assert.Equal(t, 45, *metrics.MTTRMinutes)
	})
}
