package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/netpulse/netpulse/internal/alerts"
)

// genericAlert is the native webhook format: either a single object or a
// batch under "alerts". Devices and edge integrations that speak our
// format directly use this adapter.
type genericAlert struct {
	AlertType     string                 `json:"alert_type"`
	DeviceIP      string                 `json:"device_ip"`
	DeviceName    *string                `json:"device_name,omitempty"`
	Discriminator *string                `json:"discriminator,omitempty"`
	Severity      string                 `json:"severity,omitempty"`
	Category      string                 `json:"category,omitempty"`
	Title         string                 `json:"title,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Status        string                 `json:"status,omitempty"`
	IsClear       *bool                  `json:"is_clear,omitempty"`
	Timestamp     string                 `json:"timestamp,omitempty"`
	RawData       map[string]interface{} `json:"raw_data,omitempty"`
}

type genericBatch struct {
	Alerts []genericAlert `json:"alerts"`
}

// GenericAdapter parses webhooks in the native format
type GenericAdapter struct{}

// NewGenericAdapter creates the generic webhook adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// SourceType returns the source type name
func (a *GenericAdapter) SourceType() string {
	return "generic"
}

// Parse accepts either {"alerts": [...]} or a single alert object
func (a *GenericAdapter) Parse(body []byte) ([]alerts.ParsedAlert, error) {
	var batch genericBatch
	if err := json.Unmarshal(body, &batch); err == nil && len(batch.Alerts) > 0 {
		return a.convert(batch.Alerts)
	}

	var single genericAlert
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("invalid alert payload: %w", err)
	}
	return a.convert([]genericAlert{single})
}

func (a *GenericAdapter) convert(raw []genericAlert) ([]alerts.ParsedAlert, error) {
	parsed := make([]alerts.ParsedAlert, 0, len(raw))
	for i, g := range raw {
		if g.AlertType == "" || g.DeviceIP == "" {
			return nil, fmt.Errorf("alert %d missing alert_type or device_ip", i)
		}

		isClear := alerts.IsClearStatus(g.Status)
		if g.IsClear != nil {
			isClear = *g.IsClear
		}

		p := alerts.ParsedAlert{
			AlertType:     g.AlertType,
			DeviceIP:      g.DeviceIP,
			DeviceName:    g.DeviceName,
			Discriminator: g.Discriminator,
			Severity:      alerts.NormalizeSeverity(g.Severity),
			Category:      g.Category,
			Title:         g.Title,
			Message:       g.Message,
			IsClear:       isClear,
			RawData:       g.RawData,
		}
		if g.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, g.Timestamp); err == nil {
				p.Timestamp = ts
			}
		}
		parsed = append(parsed, p)
	}
	return parsed, nil
}
