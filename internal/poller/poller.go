package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/netpulse/netpulse/internal/database"
)

// ReportedAlert is one alert-shaped condition a poll observed on a target
type ReportedAlert struct {
	AlertType     string                 `json:"alert_type"`
	Discriminator *string                `json:"discriminator,omitempty"`
	Severity      string                 `json:"severity,omitempty"`
	Category      string                 `json:"category,omitempty"`
	Title         string                 `json:"title,omitempty"`
	Message       string                 `json:"message,omitempty"`
	RawData       map[string]interface{} `json:"raw_data,omitempty"`
}

// PollResult is the outcome of one poll attempt against one target.
// ClearTypes lists alert types the poll positively observed as absent;
// a failed poll reports nothing absent, because missing data is never
// evidence of a clear.
type PollResult struct {
	Success    bool
	Reachable  bool
	Alerts     []ReportedAlert
	ClearTypes []string
	Err        error
	Duration   time.Duration
}

// Poller fetches device state for one target. Implementations exist per
// addon method (SNMP, HTTP API, SSH); the dispatcher selects one by the
// target's addon method. Credentials travel inside target.Config and are
// opaque to everything but the poller itself.
type Poller interface {
	Method() database.AddonMethod
	Poll(ctx context.Context, target *database.Target) PollResult
}

// TransientPollError marks a network or protocol failure during polling.
// It is counted and logged but never aborts the tick or other targets.
type TransientPollError struct {
	TargetUUID string
	Err        error
}

func (e *TransientPollError) Error() string {
	return fmt.Sprintf("poll of target %s failed: %v", e.TargetUUID, e.Err)
}

func (e *TransientPollError) Unwrap() error {
	return e.Err
}

// ConfigurationError marks a target that cannot be polled at all (no
// usable addon, method, or credentials). The target is skipped with a
// warning and not retried within the same tick.
type ConfigurationError struct {
	TargetUUID string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("target %s is not pollable: %s", e.TargetUUID, e.Reason)
}

// configString reads a string key from the target config
func configString(cfg database.JSONB, key string) string {
	if cfg == nil {
		return ""
	}
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

// configInt reads an integer key from the target config.
// JSON numbers decode as float64.
func configInt(cfg database.JSONB, key string, def int) int {
	if cfg == nil {
		return def
	}
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
