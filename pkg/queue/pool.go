package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/pkg/config"
)

// WorkerPool manages a pool of queue workers.
type WorkerPool struct {
	podID     string
	client    *ent.Client
	config    config.QueueConfig
	processor Processor
	rdb       *redis.Client
	workers   []*Worker
	wake      chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	cancelBg  context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

// NewWorkerPool creates a new worker pool. rdb may be nil; workers then rely
// on polling alone.
func NewWorkerPool(podID string, client *ent.Client, cfg config.QueueConfig, processor Processor, rdb *redis.Client) *WorkerPool {
	return &WorkerPool{
		podID:     podID,
		client:    client,
		config:    cfg,
		processor: processor,
		rdb:       rdb,
		workers:   make([]*Worker, 0, cfg.WorkerCount),
		wake:      make(chan struct{}, cfg.WorkerCount),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns worker goroutines and, when Redis is configured, the wake
// listener. Safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("Starting worker pool",
		"pod_id", p.podID,
		"worker_count", p.config.WorkerCount,
		"redis_wake", p.rdb != nil)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.client, p.config, p.processor, p.wake)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	if p.rdb != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		p.cancelBg = cancel
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			runWakeListener(bgCtx, p.rdb, p.wake, slog.With("pod_id", p.podID))
		}()
	}

	slog.Info("Worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish. Workers
// complete their current alert before exiting.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.cancelBg != nil {
		p.cancelBg()
	}
	p.wg.Wait()

	slog.Info("Worker pool stopped gracefully")
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.client.Alert.Query().
		Where(alert.ProcessingStatusEQ(alert.ProcessingStatusPending)).
		Count(ctx)
	if errQ != nil {
		slog.Error("Failed to query queue depth for health check",
			"pod_id", p.podID,
			"error", errQ)
	}

	activeAlerts, errA := p.client.Alert.Query().
		Where(
			alert.ProcessingStatusEQ(alert.ProcessingStatusInProgress),
			alert.PodIDEQ(p.podID),
		).
		Count(ctx)
	if errA != nil {
		slog.Error("Failed to query active alerts for health check",
			"pod_id", p.podID,
			"error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeAlerts <= p.config.MaxConcurrentAlerts && dbHealthy

	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else {
			dbError = fmt.Sprintf("active alerts query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:     isHealthy,
		DBReachable:   dbHealthy,
		DBError:       dbError,
		PodID:         p.podID,
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(p.workers),
		ActiveAlerts:  activeAlerts,
		MaxConcurrent: p.config.MaxConcurrentAlerts,
		QueueDepth:    queueDepth,
		WorkerStats:   workerStats,
	}
}
