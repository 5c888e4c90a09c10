// Package cleanup prunes stored stream events past their retention window.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/event"
	"github.com/opsrelay/opsrelay/pkg/config"
)

// Service periodically deletes Event rows older than the configured TTL.
// Events are kept only so reconnecting SSE clients can catch up via
// Last-Event-ID; pruning is idempotent and safe to run from multiple pods.
type Service struct {
	config config.RetentionConfig
	client *ent.Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, client *ent.Client) *Service {
	return &Service{
		config: cfg,
		client: client,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"event_ttl", s.config.EventTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.pruneExpiredEvents(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneExpiredEvents(ctx)
		}
	}
}

func (s *Service) pruneExpiredEvents(_ context.Context) {
	cutoff := time.Now().Add(-s.config.EventTTL)
	count, err := s.client.Event.Delete().
		Where(event.CreatedAtLT(cutoff)).
		Exec(context.Background())
	if err != nil {
		slog.Error("Retention: event cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned expired events", "count", count)
	}
}
