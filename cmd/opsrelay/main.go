// OpsRelay backplane server: receives monitoring webhooks, enriches and
// groups alerts into incidents, and serves the incident API with live
// event streaming.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/pkg/api"
	"github.com/opsrelay/opsrelay/pkg/chat"
	"github.com/opsrelay/opsrelay/pkg/cleanup"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/database"
	"github.com/opsrelay/opsrelay/pkg/events"
	"github.com/opsrelay/opsrelay/pkg/ingest"
	"github.com/opsrelay/opsrelay/pkg/mlgateway"
	"github.com/opsrelay/opsrelay/pkg/queue"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/runbook"
	"github.com/opsrelay/opsrelay/pkg/services"
	"github.com/opsrelay/opsrelay/pkg/session"
	"github.com/opsrelay/opsrelay/pkg/slack"
	"github.com/opsrelay/opsrelay/pkg/summarize"
	"github.com/opsrelay/opsrelay/pkg/version"
)

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

// lifecycleFanout forwards grouping and status events to the stream publisher
// and, when configured, to Slack. The slack service is nil-safe.
type lifecycleFanout struct {
	events *events.LifecycleNotifier
	slack  *slack.Service
}

func (f *lifecycleFanout) IncidentCreated(ctx context.Context, inc *ent.Incident, a *ent.Alert) {
	f.events.IncidentCreated(ctx, inc, a)
	f.slack.NotifyIncidentOpened(ctx, slack.IncidentOpenedInput{
		IncidentID: inc.ID,
		Title:      inc.Title,
		Severity:   string(inc.Severity),
		Services:   inc.AffectedServices,
		AlertTitle: a.Title,
	})
}

func (f *lifecycleFanout) AlertAdded(ctx context.Context, inc *ent.Incident, a *ent.Alert) {
	f.events.AlertAdded(ctx, inc, a)
}

func (f *lifecycleFanout) StatusChanged(ctx context.Context, incidentID int, status, user string) {
	f.events.StatusChanged(ctx, incidentID, status, user)
	f.slack.NotifyIncidentStatus(ctx, incidentID, status, user)
}

func main() {
	// Load .env file when present; container deployments inject the
	// environment directly.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded, continuing with existing environment", "error", err)
	}

	cfg := config.Load()
	podID := resolvePodID()
	logger := slog.Default()

	slog.Info("Starting OpsRelay",
		"version", version.Full(),
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"pod_id", podID)

	ctx := context.Background()

	// 1. Initialize database (runs embedded migrations)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 2. Streaming infrastructure: hub, publisher, and the dedicated
	// LISTEN connection
	hub := events.NewHub()
	publisher := events.NewEventPublisher(dbClient.DB())
	listener := events.NewNotifyListener(dbConfig.DSN(), hub)
	if err := listener.Start(ctx); err != nil {
		slog.Error("Failed to start notify listener", "error", err)
		os.Exit(1)
	}
	defer listener.Stop(ctx)

	slackService := slack.NewService(slack.ServiceConfig{
		Token:        cfg.Slack.Token,
		Channel:      cfg.Slack.Channel,
		DashboardURL: cfg.Slack.DashboardURL,
	})
	if slackService != nil {
		slog.Info("Slack notifications enabled", "channel", cfg.Slack.Channel)
	}

	lifecycle := &lifecycleFanout{
		events: events.NewLifecycleNotifier(publisher),
		slack:  slackService,
	}
	slog.Info("Streaming infrastructure initialized")

	// 3. Domain services
	incidentService := services.NewIncidentService(dbClient.Client, lifecycle)
	alertService := services.NewAlertService(dbClient.Client)
	connectorService := services.NewConnectorService(dbClient.Client)
	dashboardService := services.NewDashboardService(dbClient.Client, dbClient.DB())

	if err := connectorService.Seed(ctx); err != nil {
		slog.Error("Failed to seed connectors", "error", err)
		os.Exit(1)
	}

	// 4. Retrieval and summarization
	finder := retrieval.NewIncidentFinder(dbClient.Client, dbClient.DB(), logger)
	runbooks := retrieval.NewRunbookRetriever(dbClient.Client, dbClient.DB(), cfg.Retrieval, logger)
	runbookService := services.NewRunbookService(dbClient.Client, runbooks)
	summarizer := summarize.NewSummarizer(dbClient.Client, finder, runbooks, logger)

	if dir := os.Getenv("RUNBOOKS_DIR"); dir != "" {
		ingester := runbook.NewIngester(dbClient.Client, logger)
		count, err := ingester.IngestFolder(ctx, dir, "runbooks", nil)
		if err != nil {
			slog.Error("Failed to ingest runbook folder", "dir", dir, "error", err)
			// Non-fatal: retrieval degrades to whatever is already indexed
		} else {
			slog.Info("Runbooks ingested", "dir", dir, "chunks", count)
		}
	}
	if err := runbooks.EnsureEmbeddings(ctx); err != nil {
		slog.Error("Failed to backfill runbook embeddings", "error", err)
	}

	// 5. Chat generation: OpenAI-backed when configured, deterministic
	// summary fallback otherwise
	var generator chat.Generator = chat.FallbackGenerator{}
	if cfg.LLM.Enabled() {
		generator = chat.NewLLMGenerator(cfg.LLM.APIKey, cfg.LLM.Model)
		slog.Info("LLM chat generation enabled", "model", cfg.LLM.Model)
	} else {
		slog.Info("LLM chat generation disabled, using summary fallback")
	}
	chatOrchestrator := chat.NewOrchestrator(summarizer, generator, logger).
		WithHistory(session.NewManager())

	// 6. Optional Redis for cross-replica worker wake
	var rdb *redis.Client
	var wake *queue.Notifier
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("Error closing Redis client", "error", err)
			}
		}()
		wake = queue.NewNotifier(rdb, logger)
		slog.Info("Redis wake channel configured")
	} else {
		slog.Info("REDIS_URL not set, workers rely on polling")
	}

	// 7. Enrichment pipeline and worker pool (before HTTP server)
	gateway := mlgateway.NewClient(cfg.ML.ServiceURL, cfg.ML.RequestTimeout, logger)
	if gateway.Enabled() {
		slog.Info("ML enrichment enabled", "url", cfg.ML.ServiceURL)
	} else {
		slog.Info("ML_SERVICE_URL not set, enrichment uses heuristic fallback")
	}

	grouper := queue.NewGrouper(dbClient.Client, logger)
	processor := queue.NewAlertProcessor(dbClient.Client, gateway, grouper, lifecycle, logger)

	workerPool := queue.NewWorkerPool(podID, dbClient.Client, cfg.Queue, processor, rdb)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	cleanupService := cleanup.NewService(cfg.Retention, dbClient.Client)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	// 8. HTTP server
	server := api.NewServer(&cfg, api.Deps{
		DBClient:   dbClient,
		Intake:     ingest.NewIntake(dbClient.Client, logger),
		Incidents:  incidentService,
		Alerts:     alertService,
		Connectors: connectorService,
		Dashboard:  dashboardService,
		Runbooks:   runbookService,
		Finder:     finder,
		Summarizer: summarizer,
		Chat:       chatOrchestrator,
		Publisher:  publisher,
		Hub:        hub,
		Listener:   listener,
		WorkerPool: workerPool,
		Wake:       wake,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("OpsRelay started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: drain workers, then the HTTP server
	workerShutdownCtx, workerCancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-workerShutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, in-flight alerts will be retried on restart")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
