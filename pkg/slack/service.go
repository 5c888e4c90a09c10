// Package slack delivers incident notifications to a Slack channel. The
// incident-opened message carries an INC-<id> marker so later status updates
// can be threaded under it.
package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// IncidentOpenedInput contains data for a new-incident notification.
type IncidentOpenedInput struct {
	IncidentID int
	Title      string
	Severity   string
	Services   []string
	AlertTitle string
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyIncidentOpened posts the root message for a new incident.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyIncidentOpened(ctx context.Context, input IncidentOpenedInput) {
	if s == nil {
		return
	}

	blocks := BuildIncidentOpenedMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		s.logger.Error("Failed to send Slack incident notification",
			"incident_id", input.IncidentID,
			"error", err)
	}
}

// NotifyIncidentStatus posts a status transition, threaded under the
// incident's root message when it can be found.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyIncidentStatus(ctx context.Context, incidentID int, status, user string) {
	if s == nil {
		return
	}

	threadTS, err := s.client.FindIncidentThread(ctx, incidentID)
	if err != nil {
		s.logger.Warn("Failed to find Slack thread for incident",
			"incident_id", incidentID,
			"error", err)
	}

	blocks := BuildStatusChangedMessage(incidentID, status, user, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack status notification",
			"incident_id", incidentID,
			"status", status,
			"error", err)
	}
}
