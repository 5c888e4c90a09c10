// Package api exposes the HTTP surface: webhook intake, incident and alert
// queries, runbook search, connectors, dashboard metrics, the chat SSE stream,
// and the live incident event stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/chat"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/database"
	"github.com/opsrelay/opsrelay/pkg/events"
	"github.com/opsrelay/opsrelay/pkg/ingest"
	"github.com/opsrelay/opsrelay/pkg/queue"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/services"
	"github.com/opsrelay/opsrelay/pkg/summarize"
)

// Deps carries everything the HTTP layer delegates to. Optional fields
// (workerPool, wake, hub, listener, publisher) may be nil; the affected
// endpoints then degrade rather than fail at startup.
type Deps struct {
	DBClient   *database.Client
	Intake     *ingest.Intake
	Incidents  *services.IncidentService
	Alerts     *services.AlertService
	Connectors *services.ConnectorService
	Dashboard  *services.DashboardService
	Runbooks   *services.RunbookService
	Finder     *retrieval.IncidentFinder
	Summarizer *summarize.Summarizer
	Chat       *chat.Orchestrator
	Publisher  *events.EventPublisher
	Hub        *events.Hub
	Listener   *events.NotifyListener
	WorkerPool *queue.WorkerPool
	Wake       *queue.Notifier
}

// Server is the HTTP server.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	verifier *SignatureVerifier

	dbClient   *database.Client
	intake     *ingest.Intake
	incidents  *services.IncidentService
	alerts     *services.AlertService
	connectors *services.ConnectorService
	dashboard  *services.DashboardService
	runbooks   *services.RunbookService
	finder     *retrieval.IncidentFinder
	summarizer *summarize.Summarizer
	chat       *chat.Orchestrator
	publisher  *events.EventPublisher
	hub        *events.Hub
	listener   *events.NotifyListener
	workerPool *queue.WorkerPool
	wake       *queue.Notifier

	// Serializes LISTEN acquisition and release against the hub's subscriber
	// count, so a stream closing cannot unlisten a channel another stream
	// just claimed.
	streamMu sync.Mutex

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer creates the server and registers all routes.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		verifier:   NewSignatureVerifier(cfg.Webhook),
		dbClient:   deps.DBClient,
		intake:     deps.Intake,
		incidents:  deps.Incidents,
		alerts:     deps.Alerts,
		connectors: deps.Connectors,
		dashboard:  deps.Dashboard,
		runbooks:   deps.Runbooks,
		finder:     deps.Finder,
		summarizer: deps.Summarizer,
		chat:       deps.Chat,
		publisher:  deps.Publisher,
		hub:        deps.Hub,
		listener:   deps.Listener,
		workerPool: deps.WorkerPool,
		wake:       deps.Wake,
	}

	e := echo.New()
	e.Use(securityHeaders())
	e.Use(corsMiddleware())
	s.registerRoutes(e)
	s.echo = e

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/health", s.healthHandler)

	e.POST("/webhook/:source", s.webhookHandler)

	e.GET("/incidents", s.listIncidentsHandler)
	e.GET("/incidents/:id", s.getIncidentHandler)
	e.PATCH("/incidents/:id/status", s.updateIncidentStatusHandler)
	e.GET("/incidents/:id/similar", s.similarIncidentsHandler)
	e.POST("/incidents/:id/summarize", s.summarizeIncidentHandler)

	e.GET("/alerts", s.listAlertsHandler)
	e.GET("/alerts/:id", s.getAlertHandler)

	e.GET("/runbooks", s.listRunbooksHandler)
	e.GET("/runbooks/search", s.searchRunbooksHandler)

	e.GET("/connectors", s.listConnectorsHandler)
	e.POST("/connectors/:id/connect", s.connectConnectorHandler)

	e.GET("/dashboard/metrics", s.dashboardMetricsHandler)

	e.GET("/chat/stream", s.chatStreamHandler)
	e.GET("/events/stream", s.eventStreamHandler)
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called; a clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
