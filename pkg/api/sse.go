package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// sseWriter frames server-sent events over an echo response. Every event is
// flushed immediately so the client sees deltas as they are produced.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter commits the SSE response headers and returns the writer. Fails
// when the underlying connection cannot stream.
func newSSEWriter(c *echo.Context) (*sseWriter, error) {
	w := c.Response().Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

// Send writes one named event with a JSON payload.
func (s *sseWriter) Send(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return s.SendRaw(name, "", payload)
}

// SendRaw writes one event with pre-marshaled data and an optional event id.
func (s *sseWriter) SendRaw(name, id string, data []byte) error {
	if id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
