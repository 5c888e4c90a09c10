package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/pkg/events"
)

const (
	eventStreamCatchupLimit = 500
	eventStreamPingInterval = 30 * time.Second
)

// eventStreamHandler handles GET /events/stream. Without incident_id the
// stream carries the global feed of all incident lifecycle events; with it,
// only that incident's channel. A Last-Event-ID header replays stored events
// the client missed before switching to live NOTIFY delivery. Global events
// are transient and have no catchup.
func (s *Server) eventStreamHandler(c *echo.Context) error {
	if s.hub == nil || s.listener == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event streaming is not enabled")
	}

	channel := events.GlobalIncidentsChannel
	if v := c.QueryParam("incident_id"); v != "" {
		incidentID, err := strconv.Atoi(v)
		if err != nil || incidentID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "incident_id must be a positive integer")
		}
		if _, err := s.dbClient.Client.Incident.Get(c.Request().Context(), incidentID); err != nil {
			if ent.IsNotFound(err) {
				return echo.NewHTTPError(http.StatusNotFound, "Incident not found")
			}
			return mapServiceError(err)
		}
		channel = events.IncidentChannel(incidentID)
	}

	ctx := c.Request().Context()

	// Subscribe before catchup so no event falls between the two.
	s.streamMu.Lock()
	sub, cancel := s.hub.Subscribe(channel)
	listenErr := s.listener.Listen(ctx, channel)
	s.streamMu.Unlock()

	// The LISTEN registration is refcounted by hub subscribers; the last
	// stream on a channel releases it.
	defer func() {
		s.streamMu.Lock()
		defer s.streamMu.Unlock()
		cancel()
		if s.hub.SubscriberCount(channel) == 0 {
			if err := s.listener.Unlisten(context.Background(), channel); err != nil {
				s.logger.Warn("Failed to release NOTIFY channel", "channel", channel, "error", err)
			}
		}
	}()

	if listenErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to subscribe to event channel")
	}

	writer, err := newSSEWriter(c)
	if err != nil {
		return err
	}

	if v := c.Request().Header.Get("Last-Event-ID"); v != "" && channel != events.GlobalIncidentsChannel {
		sinceID, parseErr := strconv.ParseInt(v, 10, 64)
		if parseErr == nil {
			if err := s.replayEvents(c, writer, channel, sinceID); err != nil {
				return nil
			}
		}
	}

	s.logger.Info("Event stream opened", "channel", channel)

	ping := time.NewTicker(eventStreamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-sub:
			if !ok {
				return nil
			}
			if err := writer.SendRaw("incident_event", eventIDFromPayload(payload), payload); err != nil {
				return nil
			}
		case <-ping.C:
			if err := writer.SendRaw("ping", "", []byte("{}")); err != nil {
				return nil
			}
		}
	}
}

// replayEvents sends stored events the client missed since its last seen id.
func (s *Server) replayEvents(c *echo.Context, writer *sseWriter, channel string, sinceID int64) error {
	stored, err := s.publisher.CatchupEvents(c.Request().Context(), channel, sinceID, eventStreamCatchupLimit)
	if err != nil {
		s.logger.Warn("Event catchup failed", "channel", channel, "error", err)
		return nil
	}
	for _, evt := range stored {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			continue
		}
		if err := writer.SendRaw("incident_event", strconv.FormatInt(evt.ID, 10), payload); err != nil {
			return err
		}
	}
	return nil
}

// eventIDFromPayload extracts the stored event id a publisher injected into
// the NOTIFY copy, or "" for transient events.
func eventIDFromPayload(payload []byte) string {
	var envelope struct {
		DBEventID *int64 `json:"db_event_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.DBEventID == nil {
		return ""
	}
	return strconv.FormatInt(*envelope.DBEventID, 10)
}
