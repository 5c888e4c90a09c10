package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/pkg/chat"
)

// chatStreamHandler handles GET /chat/stream. Parameter validation and the
// incident existence check happen before the stream opens so failures surface
// as plain HTTP errors; once streaming starts, failures arrive as SSE error
// events instead.
func (s *Server) chatStreamHandler(c *echo.Context) error {
	incidentID, err := strconv.Atoi(c.QueryParam("incident_id"))
	if err != nil || incidentID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "incident_id must be a positive integer")
	}

	message := c.QueryParam("message")
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	conversationID := c.QueryParam("conversation_id")

	limitSimilar, err := boundedIntParam(c, "limit_similar", 5, 1, 20)
	if err != nil {
		return err
	}
	limitRunbook, err := boundedIntParam(c, "limit_runbook", 5, 1, 20)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	exists, err := s.dbClient.Client.Incident.Get(ctx, incidentID)
	if err != nil {
		if ent.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Incident not found")
		}
		return mapServiceError(err)
	}

	writer, err := newSSEWriter(c)
	if err != nil {
		return err
	}

	s.logger.Info("Chat stream opened",
		"incident_id", exists.ID,
		"conversation_id", conversationID)

	streamErr := s.chat.Stream(ctx, chat.Request{
		IncidentID:     incidentID,
		Message:        message,
		ConversationID: conversationID,
		LimitSimilar:   limitSimilar,
		LimitRunbook:   limitRunbook,
	}, func(event chat.Event) error {
		return writer.Send(event.Name, event.Data)
	})
	if streamErr != nil {
		// The response is already committed; log and end the stream.
		s.logger.Warn("Chat stream ended with error",
			"incident_id", incidentID, "error", streamErr)
	}
	return nil
}
