package slack

import (
	"fmt"
	"regexp"
	"strings"

	goslack "github.com/slack-go/slack"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// incidentFingerprint is the marker embedded in the incident-opened message
// and searched for when threading later updates.
func incidentFingerprint(incidentID int) string {
	return fmt.Sprintf("INC-%d", incidentID)
}

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func collectMessageText(msg goslack.Message) string {
	var parts []string
	if msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	for _, att := range msg.Attachments {
		if att.Text != "" {
			parts = append(parts, att.Text)
		}
		if att.Fallback != "" {
			parts = append(parts, att.Fallback)
		}
	}
	for _, block := range msg.Blocks.BlockSet {
		if section, ok := block.(*goslack.SectionBlock); ok && section.Text != nil {
			parts = append(parts, section.Text.Text)
		}
	}
	return strings.Join(parts, " ")
}
