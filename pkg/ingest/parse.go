// Package ingest normalizes source-specific webhook payloads into alerts and
// enforces deduplication on the (source, external_id) natural key.
package ingest

import (
	"fmt"
	"time"
)

// Sources accepted on the webhook surface.
const (
	SourceDatadog   = "datadog"
	SourceSentry    = "sentry"
	SourcePagerDuty = "pagerduty"
)

const maxTitleLen = 500

// ParsedAlert is the normalized form of a source payload. The raw payload is
// retained verbatim alongside it.
type ParsedAlert struct {
	ExternalID string
	Title      string
	Message    string
	Timestamp  time.Time
}

// ParseError reports a payload that could not be normalized. The webhook
// surface maps it to a 400 response.
type ParseError struct {
	Source string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Source, e.Reason)
}

// Parse normalizes a payload for the given source.
func Parse(source string, payload map[string]any) (*ParsedAlert, error) {
	switch source {
	case SourceDatadog:
		return parseDatadog(payload)
	case SourceSentry:
		return parseSentry(payload)
	case SourcePagerDuty:
		return parsePagerDuty(payload)
	default:
		return nil, &ParseError{Source: source, Reason: "unknown source"}
	}
}

// parseDatadog handles the monitor webhook shape: id, title, body,
// last_updated, tags.
func parseDatadog(payload map[string]any) (*ParsedAlert, error) {
	externalID := stringField(payload, "id")
	if externalID == "" {
		return nil, &ParseError{Source: SourceDatadog, Reason: "missing 'id' field"}
	}

	title := stringField(payload, "title")
	if title == "" {
		title = "Datadog Alert"
	}

	return &ParsedAlert{
		ExternalID: externalID,
		Title:      truncate(title, maxTitleLen),
		Message:    stringField(payload, "body"),
		Timestamp:  parseTimestamp(stringField(payload, "last_updated")),
	}, nil
}

// parseSentry handles both the nested issue-alert shape (data.issue plus an
// optional data.event) and the flat legacy event shape.
func parseSentry(payload map[string]any) (*ParsedAlert, error) {
	if data, ok := payload["data"].(map[string]any); ok {
		if issue, ok := data["issue"].(map[string]any); ok {
			event, _ := data["event"].(map[string]any)

			externalID := stringField(issue, "id")
			if externalID == "" {
				return nil, &ParseError{Source: SourceSentry, Reason: "missing issue id"}
			}

			title := stringField(issue, "title")
			if title == "" {
				title = "Sentry Issue"
			}

			message := stringField(event, "message")
			if message == "" {
				if meta, ok := issue["metadata"].(map[string]any); ok {
					message = stringField(meta, "value")
				}
			}

			ts := stringField(event, "timestamp")
			if ts == "" {
				ts = stringField(issue, "lastSeen")
			}

			return &ParsedAlert{
				ExternalID: externalID,
				Title:      truncate(title, maxTitleLen),
				Message:    message,
				Timestamp:  parseTimestamp(ts),
			}, nil
		}
	}

	externalID := stringField(payload, "id")
	if externalID == "" {
		externalID = stringField(payload, "event_id")
	}
	if externalID == "" {
		return nil, &ParseError{Source: SourceSentry, Reason: "missing event or issue id"}
	}

	title := stringField(payload, "title")
	if title == "" {
		title = stringField(payload, "message")
	}
	if title == "" {
		title = "Sentry Event"
	}

	return &ParsedAlert{
		ExternalID: externalID,
		Title:      truncate(title, maxTitleLen),
		Message:    stringField(payload, "message"),
		Timestamp:  parseTimestamp(stringField(payload, "timestamp")),
	}, nil
}

// parsePagerDuty handles the v3 webhook envelope: event.id, event.occurred_at
// and event.data carrying the incident summary.
func parsePagerDuty(payload map[string]any) (*ParsedAlert, error) {
	event, ok := payload["event"].(map[string]any)
	if !ok {
		return nil, &ParseError{Source: SourcePagerDuty, Reason: "missing 'event' envelope"}
	}

	data, _ := event["data"].(map[string]any)

	externalID := stringField(data, "id")
	if externalID == "" {
		externalID = stringField(event, "id")
	}
	if externalID == "" {
		return nil, &ParseError{Source: SourcePagerDuty, Reason: "missing event id"}
	}

	title := stringField(data, "title")
	if title == "" {
		title = stringField(data, "summary")
	}
	if title == "" {
		title = "PagerDuty Event"
	}

	return &ParsedAlert{
		ExternalID: externalID,
		Title:      truncate(title, maxTitleLen),
		Message:    stringField(data, "summary"),
		Timestamp:  parseTimestamp(stringField(event, "occurred_at")),
	}, nil
}

// parseTimestamp accepts RFC 3339 timestamps, with or without fractional
// seconds. Anything unparseable defaults to the current time so intake never
// rejects an otherwise valid alert over a bad clock field.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		// JSON numbers arrive as float64. External ids are often numeric.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
