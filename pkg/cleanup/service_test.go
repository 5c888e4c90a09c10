package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent/event"
	"github.com/opsrelay/opsrelay/pkg/config"
	testdb "github.com/opsrelay/opsrelay/test/database"
)

func TestService_PrunesExpiredEvents(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	_, err := client.Event.Create().
		SetChannel("incident_1_events").
		SetIncidentID(1).
		SetPayload(`{"type":"incident.status"}`).
		SetCreatedAt(time.Now().Add(-2 * time.Hour)).
		Save(ctx)
	require.NoError(t, err)

	recent, err := client.Event.Create().
		SetChannel("incident_1_events").
		SetIncidentID(1).
		SetPayload(`{"type":"incident.status"}`).
		SetCreatedAt(time.Now()).
		Save(ctx)
	require.NoError(t, err)

	svc := NewService(config.RetentionConfig{
		EventTTL:        1 * time.Hour,
		CleanupInterval: 1 * time.Hour,
	}, client.Client)
	svc.pruneExpiredEvents(ctx)

	remaining, err := client.Event.Query().Where(event.ChannelEQ("incident_1_events")).All(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1, "old event should be deleted, recent event preserved")
	assert.Equal(t, recent.ID, remaining[0].ID)
}

func TestService_StartStop(t *testing.T) {
	client := testdb.NewTestClient(t)

	svc := NewService(config.RetentionConfig{
		EventTTL:        1 * time.Hour,
		CleanupInterval: 1 * time.Hour,
	}, client.Client)

	svc.Start(context.Background())
	svc.Stop()

	// Stop on an already-stopped service is a no-op.
	svc.cancel = nil
	svc.Stop()
}
