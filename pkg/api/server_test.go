package api

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/pkg/chat"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/database"
	"github.com/opsrelay/opsrelay/pkg/ingest"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/services"
	"github.com/opsrelay/opsrelay/pkg/summarize"
	testdb "github.com/opsrelay/opsrelay/test/database"
)

const (
	testDatadogSecret = "dd-test-secret"
	testSentrySecret  = "sentry-test-secret"
)

// newTestServer builds a fully wired server over a per-test database schema.
// Event streaming and the worker pool stay nil; their endpoints are covered
// by dedicated tests.
func newTestServer(t *testing.T) (*Server, *database.Client) {
	t.Helper()
	client := testdb.NewTestClient(t)
	return newTestServerForClient(t, client), client
}

// newTestServerForClient wires a server over an existing database client, for
// tests that share one schema across several components.
func newTestServerForClient(t *testing.T, client *database.Client) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	cfg := &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Retrieval: config.DefaultRetrievalConfig(),
		Webhook: config.WebhookConfig{
			Secrets: map[string]string{
				"datadog":   testDatadogSecret,
				"sentry":    testSentrySecret,
				"pagerduty": "pd-test-secret",
			},
		},
	}

	finder := retrieval.NewIncidentFinder(client.Client, client.DB(), logger)
	runbooks := retrieval.NewRunbookRetriever(client.Client, client.DB(), cfg.Retrieval, logger)
	summarizer := summarize.NewSummarizer(client.Client, finder, runbooks, logger)

	deps := Deps{
		DBClient:   client,
		Intake:     ingest.NewIntake(client.Client, logger),
		Incidents:  services.NewIncidentService(client.Client, nil),
		Alerts:     services.NewAlertService(client.Client),
		Connectors: services.NewConnectorService(client.Client),
		Dashboard:  services.NewDashboardService(client.Client, client.DB()),
		Runbooks:   services.NewRunbookService(client.Client, runbooks),
		Finder:     finder,
		Summarizer: summarizer,
		Chat:       chat.NewOrchestrator(summarizer, chat.FallbackGenerator{}, logger),
	}
	return NewServer(cfg, deps, logger)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func createTestIncident(t *testing.T, client *ent.Client, title string, status incident.Status, severity incident.Severity, servicesList []string) *ent.Incident {
	t.Helper()
	inc, err := client.Incident.Create().
		SetTitle(title).
		SetStatus(status).
		SetSeverity(severity).
		SetAffectedServices(servicesList).
		Save(context.Background())
	require.NoError(t, err)
	return inc
}

func createTestAlert(t *testing.T, client *ent.Client, incidentID int, externalID, title string) *ent.Alert {
	t.Helper()
	a, err := client.Alert.Create().
		SetExternalID(externalID).
		SetSource("datadog").
		SetTitle(title).
		SetRawPayload(map[string]any{"id": externalID}).
		SetAlertTimestamp(time.Now().UTC()).
		SetIncidentID(incidentID).
		Save(context.Background())
	require.NoError(t, err)
	return a
}
