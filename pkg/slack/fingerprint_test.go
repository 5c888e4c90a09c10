package slack

import (
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
)

func TestIncidentFingerprint(t *testing.T) {
	assert.Equal(t, "INC-42", incidentFingerprint(42))
	assert.Equal(t, "INC-1", incidentFingerprint(1))
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase",
			input:    "Database LATENCY spike",
			expected: "database latency spike",
		},
		{
			name:     "collapse whitespace",
			input:    "database   latency\t\tspike\n\nin payments",
			expected: "database latency spike in payments",
		},
		{
			name:     "trim",
			input:    "  hello  ",
			expected: "hello",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeText(tt.input))
		})
	}
}

func TestCollectMessageText(t *testing.T) {
	tests := []struct {
		name     string
		msg      goslack.Message
		expected string
	}{
		{
			name: "text only",
			msg: goslack.Message{
				Msg: goslack.Msg{Text: "hello world"},
			},
			expected: "hello world",
		},
		{
			name: "text with attachment text",
			msg: goslack.Message{
				Msg: goslack.Msg{
					Text: "alert",
					Attachments: []goslack.Attachment{
						{Text: "latency spike"},
					},
				},
			},
			expected: "alert latency spike",
		},
		{
			name: "attachment with both text and fallback",
			msg: goslack.Message{
				Msg: goslack.Msg{
					Attachments: []goslack.Attachment{
						{Text: "att text", Fallback: "att fallback"},
					},
				},
			},
			expected: "att text att fallback",
		},
		{
			name: "section block text",
			msg: goslack.Message{
				Msg: goslack.Msg{
					Blocks: goslack.Blocks{
						BlockSet: []goslack.Block{
							goslack.NewSectionBlock(
								goslack.NewTextBlockObject(goslack.MarkdownType, ":rotating_light: *INC-42: outage*", false, false),
								nil, nil,
							),
						},
					},
				},
			},
			expected: ":rotating_light: *INC-42: outage*",
		},
		{
			name:     "empty message",
			msg:      goslack.Message{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, collectMessageText(tt.msg))
		})
	}
}
