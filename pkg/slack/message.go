package slack

import (
	"fmt"
	"strings"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var severityEmoji = map[string]string{
	"critical": ":rotating_light:",
	"error":    ":x:",
	"warning":  ":warning:",
	"info":     ":information_source:",
}

var statusEmoji = map[string]string{
	"open":          ":rotating_light:",
	"investigating": ":mag:",
	"resolved":      ":white_check_mark:",
	"closed":        ":lock:",
}

func incidentURL(incidentID int, dashboardURL string) string {
	return fmt.Sprintf("%s/incidents/%d", dashboardURL, incidentID)
}

// BuildIncidentOpenedMessage creates Block Kit blocks for a new incident.
// The INC-<id> marker in the header doubles as the threading fingerprint.
func BuildIncidentOpenedMessage(input IncidentOpenedInput, dashboardURL string) []goslack.Block {
	emoji := severityEmoji[input.Severity]
	if emoji == "" {
		emoji = ":question:"
	}

	headerText := fmt.Sprintf("%s *%s: %s*", emoji, incidentFingerprint(input.IncidentID), truncateForSlack(input.Title))

	var details []string
	details = append(details, "*Severity:* "+input.Severity)
	if len(input.Services) > 0 {
		details = append(details, "*Services:* "+strings.Join(input.Services, ", "))
	}
	if input.AlertTitle != "" && input.AlertTitle != input.Title {
		details = append(details, "*Triggering alert:* "+input.AlertTitle)
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(strings.Join(details, "\n")), false, false),
			nil, nil,
		),
	}

	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Incident", false, false))
	btn.URL = incidentURL(input.IncidentID, dashboardURL)
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

// BuildStatusChangedMessage creates Block Kit blocks for a status transition.
func BuildStatusChangedMessage(incidentID int, status, user, dashboardURL string) []goslack.Block {
	emoji := statusEmoji[status]
	if emoji == "" {
		emoji = ":question:"
	}

	text := fmt.Sprintf("%s *%s* is now *%s*", emoji, incidentFingerprint(incidentID), status)
	if user != "" {
		text += fmt.Sprintf(" (by %s)", user)
	}
	text += fmt.Sprintf("\n<%s|View Incident>", incidentURL(incidentID, dashboardURL))

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

func truncateForSlack(text string) string {
	if utf8.RuneCountInString(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated, view full details in dashboard)_"
}
