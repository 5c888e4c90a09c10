// Package mlgateway is the HTTP client for the remote classification service.
// Callers are expected to fall back to rule-based enrichment when a call
// fails; the client itself never retries.
package mlgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Classification is the result of the /classify endpoint.
type Classification struct {
	Severity   string  `json:"severity"`
	Team       string  `json:"team"`
	Confidence float64 `json:"confidence"`
}

// Entities is the result of the /extract-entities endpoint. All fields are
// optional; a nil field means the service found nothing.
type Entities struct {
	ServiceName *string `json:"service_name"`
	Environment *string `json:"environment"`
	Region      *string `json:"region"`
	ErrorCode   *string `json:"error_code"`
}

// GatewayError wraps any failure talking to the inference service so callers
// can distinguish gateway trouble from their own errors.
type GatewayError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ml gateway %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("ml gateway %s failed: %v", e.Endpoint, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Client calls the inference service over HTTP JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client. timeout bounds every request including
// connection setup and body read.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Enabled reports whether a service URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Classify asks the inference service for severity and team.
func (c *Client) Classify(ctx context.Context, text string) (*Classification, error) {
	var out Classification
	if err := c.post(ctx, "/classify", text, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractEntities asks the inference service for structured entities.
func (c *Client) ExtractEntities(ctx context.Context, text string) (*Entities, error) {
	var out Entities
	if err := c.post(ctx, "/extract-entities", text, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, endpoint, text string, out any) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return &GatewayError{Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return &GatewayError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ML gateway request failed",
			"endpoint", endpoint,
			"duration", time.Since(start),
			"error", err)
		return &GatewayError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.Warn("ML gateway returned non-OK status",
			"endpoint", endpoint,
			"status", resp.StatusCode)
		return &GatewayError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("ML gateway call completed",
		"endpoint", endpoint,
		"duration", time.Since(start))
	return nil
}
