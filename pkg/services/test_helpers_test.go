package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/ent/incident"
)

var alertSeq int

// seedIncident creates an incident with sensible defaults for listing and
// lifecycle tests.
func seedIncident(t *testing.T, client *ent.Client, status incident.Status, severity incident.Severity) *ent.Incident {
	t.Helper()
	inc, err := client.Incident.Create().
		SetTitle(fmt.Sprintf("incident %s/%s", status, severity)).
		SetSeverity(severity).
		SetStatus(status).
		Save(context.Background())
	require.NoError(t, err)
	return inc
}

// seedAlert creates a completed alert, optionally attached to an incident.
func seedAlert(t *testing.T, client *ent.Client, incidentID *int, source, service string, ts time.Time) *ent.Alert {
	t.Helper()
	alertSeq++
	builder := client.Alert.Create().
		SetExternalID(fmt.Sprintf("ext-%d", alertSeq)).
		SetSource(source).
		SetTitle(fmt.Sprintf("alert %d", alertSeq)).
		SetRawPayload(map[string]any{"source": source}).
		SetAlertTimestamp(ts).
		SetProcessingStatus(alert.ProcessingStatusCompleted)
	if incidentID != nil {
		builder.SetIncidentID(*incidentID)
	}
	if service != "" {
		builder.SetServiceName(service)
	}
	a, err := builder.Save(context.Background())
	require.NoError(t, err)
	return a
}
