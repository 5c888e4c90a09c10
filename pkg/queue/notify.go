package queue

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// wakeChannel is the Redis pub/sub channel used to wake idle workers as soon
// as a new alert is recorded, instead of waiting out the poll interval.
const wakeChannel = "opsrelay:alerts:pending"

// Notifier publishes work-available signals. The queue remains fully
// functional without Redis; notifications only shorten pickup latency.
type Notifier struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewNotifier creates a notifier. rdb may be nil, which disables publishing.
func NewNotifier(rdb *redis.Client, logger *slog.Logger) *Notifier {
	return &Notifier{rdb: rdb, logger: logger}
}

// Notify signals that a pending alert exists. Best effort: failures are
// logged and swallowed because polling will pick the alert up regardless.
func (n *Notifier) Notify(ctx context.Context) {
	if n == nil || n.rdb == nil {
		return
	}
	if err := n.rdb.Publish(ctx, wakeChannel, "1").Err(); err != nil {
		n.logger.Warn("Failed to publish queue wake signal", "error", err)
	}
}

// runWakeListener subscribes to the wake channel and forwards signals to the
// pool's wake channel. Returns when ctx is cancelled.
func runWakeListener(ctx context.Context, rdb *redis.Client, wake chan<- struct{}, logger *slog.Logger) {
	sub := rdb.Subscribe(ctx, wakeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
				// A wake signal is already queued.
			}
		}
	}
}
