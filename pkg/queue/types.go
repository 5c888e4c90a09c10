// Package queue implements the database-backed alert processing queue.
// Pending alerts are claimed with FOR UPDATE SKIP LOCKED so multiple pods can
// poll the same table without double-processing.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/opsrelay/opsrelay/ent"
)

// Claim errors returned by the polling path.
var (
	ErrNoAlertsAvailable = errors.New("no pending alerts available")
	ErrAtCapacity        = errors.New("at max concurrent alerts capacity")
)

// Processor runs the enrichment pipeline for a single claimed alert.
// A returned error marks the attempt failed; the worker schedules the retry.
type Processor interface {
	Process(ctx context.Context, alert *ent.Alert) error
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a snapshot of one worker's state.
type WorkerHealth struct {
	ID              string       `json:"id"`
	Status          WorkerStatus `json:"status"`
	CurrentAlertID  int          `json:"current_alert_id,omitempty"`
	AlertsProcessed int          `json:"alerts_processed"`
	LastActivity    time.Time    `json:"last_activity"`
}

// PoolHealth is a snapshot of the whole pool, exposed on the health surface.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	DBReachable   bool           `json:"db_reachable"`
	DBError       string         `json:"db_error,omitempty"`
	PodID         string         `json:"pod_id"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveAlerts  int            `json:"active_alerts"`
	MaxConcurrent int            `json:"max_concurrent"`
	QueueDepth    int            `json:"queue_depth"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
