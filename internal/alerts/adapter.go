package alerts

// WebhookAdapter parses a source-specific webhook payload into normalized
// alerts. One webhook body can carry multiple alerts (sources batch them).
type WebhookAdapter interface {
	// SourceType returns the source type name (e.g. "alertmanager")
	SourceType() string

	// Parse converts the raw request body into parsed alerts
	Parse(body []byte) ([]ParsedAlert, error)
}
