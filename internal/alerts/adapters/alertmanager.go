package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/netpulse/netpulse/internal/alerts"
)

// alertmanagerPayload is the Prometheus Alertmanager webhook envelope
type alertmanagerPayload struct {
	Alerts []struct {
		Status      string            `json:"status"` // firing | resolved
		Labels      map[string]string `json:"labels"`
		Annotations map[string]string `json:"annotations"`
		StartsAt    string            `json:"startsAt"`
	} `json:"alerts"`
}

// AlertmanagerAdapter parses Prometheus Alertmanager webhook payloads.
// The alertname label becomes the alert type, the instance label the
// device address, and a resolved status a clearing signal.
type AlertmanagerAdapter struct{}

// NewAlertmanagerAdapter creates the Alertmanager adapter
func NewAlertmanagerAdapter() *AlertmanagerAdapter {
	return &AlertmanagerAdapter{}
}

// SourceType returns the source type name
func (a *AlertmanagerAdapter) SourceType() string {
	return "alertmanager"
}

// Parse converts an Alertmanager webhook body into parsed alerts
func (a *AlertmanagerAdapter) Parse(body []byte) ([]alerts.ParsedAlert, error) {
	var payload alertmanagerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid alertmanager payload: %w", err)
	}
	if len(payload.Alerts) == 0 {
		return nil, fmt.Errorf("alertmanager payload contains no alerts")
	}

	parsed := make([]alerts.ParsedAlert, 0, len(payload.Alerts))
	for i, am := range payload.Alerts {
		alertName := am.Labels["alertname"]
		instance := am.Labels["instance"]
		if alertName == "" || instance == "" {
			return nil, fmt.Errorf("alert %d missing alertname or instance label", i)
		}

		rawData := make(map[string]interface{}, len(am.Labels)+len(am.Annotations))
		for k, v := range am.Labels {
			rawData["label_"+k] = v
		}
		for k, v := range am.Annotations {
			rawData["annotation_"+k] = v
		}

		p := alerts.ParsedAlert{
			AlertType: alertName,
			DeviceIP:  hostFromInstance(instance),
			Severity:  alerts.NormalizeSeverity(am.Labels["severity"]),
			Category:  am.Labels["job"],
			Title:     am.Annotations["summary"],
			Message:   am.Annotations["description"],
			IsClear:   alerts.IsClearStatus(am.Status),
			RawData:   rawData,
		}
		// Alertmanager groups instances of the same alert by their label
		// set; the job label disambiguates the same alertname from
		// different scrape jobs on one host.
		if job := am.Labels["job"]; job != "" {
			p.Discriminator = &job
		}
		if am.StartsAt != "" {
			if ts, err := time.Parse(time.RFC3339, am.StartsAt); err == nil {
				p.Timestamp = ts
			}
		}
		parsed = append(parsed, p)
	}
	return parsed, nil
}

// hostFromInstance strips the port from an instance label like
// "10.0.0.5:9100".
func hostFromInstance(instance string) string {
	for i := len(instance) - 1; i >= 0; i-- {
		if instance[i] == ':' {
			return instance[:i]
		}
		if instance[i] < '0' || instance[i] > '9' {
			break
		}
	}
	return instance
}
