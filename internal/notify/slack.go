package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
)

// SlackNotifier posts alert lifecycle transitions to a Slack channel.
// It subscribes to the engine as a best-effort callback: Slack failures
// are logged and never affect alert processing.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier for the given bot token and channel
func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

// Callback returns the engine event callback for this notifier.
// Occurrence-count updates are deliberately not posted; only creation and
// resolution are channel-worthy.
func (n *SlackNotifier) Callback() engine.EventCallback {
	return func(event engine.EventType, alert *database.Alert) {
		switch event {
		case engine.EventAlertCreated, engine.EventAlertResolved:
			n.post(event, alert)
		}
	}
}

func (n *SlackNotifier) post(event engine.EventType, alert *database.Alert) {
	text := formatAlertMessage(event, alert)
	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Failed to post alert %s to Slack: %v", alert.UUID, err)
	}
}

func formatAlertMessage(event engine.EventType, alert *database.Alert) string {
	device := alert.DeviceIP
	if alert.DeviceName != nil && *alert.DeviceName != "" {
		device = fmt.Sprintf("%s (%s)", *alert.DeviceName, alert.DeviceIP)
	}

	if event == engine.EventAlertResolved {
		return fmt.Sprintf(":white_check_mark: *Resolved:* %s on %s", alert.Title, device)
	}
	return fmt.Sprintf("%s *%s* on %s\n%s", SeverityEmoji(alert.Severity), alert.Title, device, alert.Message)
}

// SeverityEmoji returns the channel emoji for a severity level
func SeverityEmoji(severity database.Severity) string {
	switch severity {
	case database.SeverityCritical:
		return ":red_circle:"
	case database.SeverityMajor:
		return ":large_orange_circle:"
	case database.SeverityMinor:
		return ":large_yellow_circle:"
	case database.SeverityWarning:
		return ":large_yellow_circle:"
	case database.SeverityInfo:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}
