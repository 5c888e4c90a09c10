package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
)

// listenCmd is a LISTEN or UNLISTEN statement executed by the receive loop,
// the sole goroutine allowed to touch the pgx connection.
type listenCmd struct {
	sql    string
	result chan error
}

// NotifyListener holds a dedicated PostgreSQL connection in LISTEN mode and
// dispatches received notifications into the Hub. Channel subscriptions are
// serialized through the receive loop to avoid the "conn busy" race between
// WaitForNotification and Exec.
type NotifyListener struct {
	connString string
	hub        *Hub

	conn   *pgx.Conn
	connMu sync.Mutex

	channels   map[string]bool
	channelsMu sync.RWMutex

	cmdCh   chan listenCmd
	running atomic.Bool

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewNotifyListener creates a listener that feeds the given hub.
func NewNotifyListener(connString string, hub *Hub) *NotifyListener {
	return &NotifyListener{
		connString: connString,
		hub:        hub,
		channels:   make(map[string]bool),
		cmdCh:      make(chan listenCmd, 16),
	}
}

// Start opens the dedicated LISTEN connection and begins the receive loop.
func (l *NotifyListener) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("failed to connect for LISTEN: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})
	go func() {
		defer close(l.loopDone)
		l.receiveLoop(loopCtx)
	}()

	slog.Info("NotifyListener started")
	return nil
}

// Listen begins receiving notifications on a channel. Idempotent.
func (l *NotifyListener) Listen(ctx context.Context, channel string) error {
	l.channelsMu.Lock()
	already := l.channels[channel]
	l.channelsMu.Unlock()
	if already {
		return nil
	}

	if err := l.sendCmd(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}

	l.channelsMu.Lock()
	l.channels[channel] = true
	l.channelsMu.Unlock()
	slog.Debug("Listening on NOTIFY channel", "channel", channel)
	return nil
}

// Listening reports whether the listener currently holds a LISTEN
// registration for the channel.
func (l *NotifyListener) Listening(channel string) bool {
	l.channelsMu.RLock()
	defer l.channelsMu.RUnlock()
	return l.channels[channel]
}

// Unlisten stops receiving notifications on a channel. Idempotent.
func (l *NotifyListener) Unlisten(ctx context.Context, channel string) error {
	l.channelsMu.Lock()
	listening := l.channels[channel]
	l.channelsMu.Unlock()
	if !listening || !l.running.Load() {
		return nil
	}

	if err := l.sendCmd(ctx, "UNLISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}

	l.channelsMu.Lock()
	delete(l.channels, channel)
	l.channelsMu.Unlock()
	return nil
}

// sendCmd hands a statement to the receive loop and waits for its result.
func (l *NotifyListener) sendCmd(ctx context.Context, sql string) error {
	if !l.running.Load() {
		return fmt.Errorf("LISTEN connection not established")
	}

	cmd := listenCmd{sql: sql, result: make(chan error, 1)}
	select {
	case l.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		if err != nil {
			return fmt.Errorf("%s failed: %w", sql, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receiveLoop waits for notifications and hands them to the hub. It is the
// only goroutine touching the pgx connection; pending LISTEN/UNLISTEN
// statements are drained between waits.
func (l *NotifyListener) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.processPendingCmds(ctx)

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			l.reconnect(ctx)
			continue
		}

		// Short timeout so pending commands get drained regularly.
		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				continue
			}
			slog.Error("NOTIFY receive error", "error", err)
			l.reconnect(ctx)
			continue
		}

		l.hub.Broadcast(notification.Channel, []byte(notification.Payload))
	}
}

// processPendingCmds drains the command channel and executes each statement.
func (l *NotifyListener) processPendingCmds(ctx context.Context) {
	for {
		select {
		case cmd := <-l.cmdCh:
			l.connMu.Lock()
			conn := l.conn
			l.connMu.Unlock()

			if conn == nil {
				cmd.result <- fmt.Errorf("LISTEN connection not established")
				continue
			}

			_, err := conn.Exec(ctx, cmd.sql)
			cmd.result <- err
		default:
			return
		}
	}
}

// reconnect re-establishes the LISTEN connection with exponential backoff
// and re-issues LISTEN for every subscribed channel.
func (l *NotifyListener) reconnect(ctx context.Context) {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, l.connString)
		if err != nil {
			slog.Error("LISTEN reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		l.conn = conn

		l.channelsMu.RLock()
		for ch := range l.channels {
			if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
				slog.Error("Re-LISTEN failed", "channel", ch, "error", err)
			}
		}
		l.channelsMu.RUnlock()

		slog.Info("NotifyListener reconnected")
		return
	}
}

// Stop signals the receive loop to exit, waits for it, then closes the
// connection. Closing after the loop exits avoids racing WaitForNotification.
func (l *NotifyListener) Stop(ctx context.Context) {
	l.running.Store(false)

	if l.cancelLoop != nil {
		l.cancelLoop()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}
}
