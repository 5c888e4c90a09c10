package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/ingest"
)

// webhookHandler handles POST /webhook/:source. The raw body is read once for
// signature verification and then parsed; intake must answer fast so the
// source platform does not time out, which is why enrichment is deferred to
// the worker queue.
func (s *Server) webhookHandler(c *echo.Context) error {
	source := c.Param("source")
	if SignatureHeader(source) == "" {
		return echo.NewHTTPError(http.StatusNotFound, "unknown webhook source: "+source)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	signature := c.Request().Header.Get(SignatureHeader(source))
	if err := s.verifier.Verify(source, body, signature); err != nil {
		s.logger.Warn("Rejected webhook with invalid signature",
			"source", source, "remote", c.Request().RemoteAddr)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid signature")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		s.logger.Error("Failed to parse webhook JSON", "source", source, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	alert, created, err := s.intake.Record(c.Request().Context(), source, payload)
	if err != nil {
		var parseErr *ingest.ParseError
		if errors.As(err, &parseErr) {
			return echo.NewHTTPError(http.StatusBadRequest, parseErr.Error())
		}
		s.logger.Error("Webhook intake failed", "source", source, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	// Wake a worker for the new alert. Duplicates are already processed.
	if created && s.wake != nil {
		s.wake.Notify(c.Request().Context())
	}

	return c.JSON(http.StatusOK, &WebhookResponse{
		Status:     "received",
		AlertID:    alert.ID,
		ExternalID: alert.ExternalID,
	})
}
