package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"entgo.io/ent/dialect/sql"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/pkg/config"
)

const maxErrorLen = 255

// Worker is a single queue worker that polls for and processes alerts.
type Worker struct {
	id        string
	podID     string
	client    *ent.Client
	config    config.QueueConfig
	processor Processor
	wake      <-chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	// Health tracking
	mu              sync.RWMutex
	status          WorkerStatus
	currentAlertID  int
	alertsProcessed int
	lastActivity    time.Time
}

// NewWorker creates a new queue worker. wake may be nil.
func NewWorker(id, podID string, client *ent.Client, cfg config.QueueConfig, processor Processor, wake <-chan struct{}) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		client:       client,
		config:       cfg,
		processor:    processor,
		wake:         wake,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:              w.id,
		Status:          w.status,
		CurrentAlertID:  w.currentAlertID,
		AlertsProcessed: w.alertsProcessed,
		LastActivity:    w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoAlertsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing alert", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration, a wake signal, or stop.
func (w *Worker) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.stopCh:
	case <-timer.C:
	case <-w.wake:
	}
}

// pollAndProcess checks capacity, claims an alert, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// Global capacity check. Best-effort; racy with concurrent workers but
	// bounded by WorkerCount and mitigated by poll jitter.
	activeCount, err := w.client.Alert.Query().
		Where(alert.ProcessingStatusEQ(alert.ProcessingStatusInProgress)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("checking active alerts: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentAlerts {
		return ErrAtCapacity
	}

	claimed, err := w.claimNextAlert(ctx)
	if err != nil {
		return err
	}

	log := slog.With("alert_id", claimed.ID, "worker_id", w.id)
	log.Info("Alert claimed", "attempt", claimed.ProcessingAttempts)

	w.setStatus(WorkerStatusWorking, claimed.ID)
	defer w.setStatus(WorkerStatusIdle, 0)

	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	procErr := w.processor.Process(taskCtx, claimed)
	if procErr == nil && taskCtx.Err() != nil {
		procErr = fmt.Errorf("alert processing timed out after %v", w.config.TaskTimeout)
	}

	// Terminal status is written with a background context; the task context
	// may already be cancelled.
	if err := w.finalizeAlert(context.Background(), claimed, procErr); err != nil {
		log.Error("Failed to update alert terminal status", "error", err)
		return err
	}

	w.mu.Lock()
	w.alertsProcessed++
	w.mu.Unlock()

	if procErr != nil {
		log.Warn("Alert processing attempt failed",
			"attempt", claimed.ProcessingAttempts,
			"error", procErr)
	} else {
		log.Info("Alert processing complete")
	}
	return nil
}

// claimNextAlert atomically claims the next due alert using
// FOR UPDATE SKIP LOCKED. Alerts waiting on a retry backoff are skipped
// until their next_attempt_at passes.
func (w *Worker) claimNextAlert(ctx context.Context) (*ent.Alert, error) {
	tx, err := w.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	claimed, err := tx.Alert.Query().
		Where(
			alert.ProcessingStatusEQ(alert.ProcessingStatusPending),
			alert.Or(
				alert.NextAttemptAtIsNil(),
				alert.NextAttemptAtLTE(now),
			),
		).
		Order(ent.Asc(alert.FieldCreatedAt)).
		Limit(1).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNoAlertsAvailable
		}
		return nil, fmt.Errorf("failed to query pending alert: %w", err)
	}

	claimed, err = claimed.Update().
		SetProcessingStatus(alert.ProcessingStatusInProgress).
		SetPodID(w.podID).
		SetProcessingAttempts(claimed.ProcessingAttempts + 1).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim alert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return claimed, nil
}

// finalizeAlert writes the terminal status for this attempt: completed on
// success, pending with a backoff on a retryable failure, failed once the
// attempt budget is spent.
func (w *Worker) finalizeAlert(ctx context.Context, claimed *ent.Alert, procErr error) error {
	if procErr == nil {
		return w.client.Alert.UpdateOneID(claimed.ID).
			SetProcessingStatus(alert.ProcessingStatusCompleted).
			SetProcessedAt(time.Now()).
			ClearNextAttemptAt().
			Exec(ctx)
	}

	errMsg := procErr.Error()
	if len(errMsg) > maxErrorLen {
		errMsg = errMsg[:maxErrorLen]
	}

	if claimed.ProcessingAttempts >= w.config.MaxAttempts {
		return w.client.Alert.UpdateOneID(claimed.ID).
			SetProcessingStatus(alert.ProcessingStatusFailed).
			SetLastError(errMsg).
			ClearNextAttemptAt().
			Exec(ctx)
	}

	return w.client.Alert.UpdateOneID(claimed.ID).
		SetProcessingStatus(alert.ProcessingStatusPending).
		SetLastError(errMsg).
		SetNextAttemptAt(time.Now().Add(retryBackoff(claimed.ProcessingAttempts))).
		Exec(ctx)
}

// retryBackoff returns 2^attempt seconds.
func retryBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, alertID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentAlertID = alertID
	w.lastActivity = time.Now()
}
