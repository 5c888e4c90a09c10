package config

// SlackConfig contains Slack notification settings. Notifications are
// disabled when Token or Channel is empty.
type SlackConfig struct {
	// Token is the bot token used for chat.postMessage.
	Token string

	// Channel is the channel ID incident notifications are posted to.
	Channel string

	// DashboardURL is the base URL used to build incident links.
	DashboardURL string
}

// LoadSlackConfig reads Slack settings from the environment.
func LoadSlackConfig() SlackConfig {
	return SlackConfig{
		Token:        getEnv("SLACK_BOT_TOKEN", ""),
		Channel:      getEnv("SLACK_CHANNEL_ID", ""),
		DashboardURL: getEnv("DASHBOARD_URL", "http://localhost:3000"),
	}
}
