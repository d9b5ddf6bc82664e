package alerts

import (
	"strings"
	"time"

	"github.com/netpulse/netpulse/internal/database"
)

// ParsedAlert is the normalized form every ingestion path produces: webhook
// adapters on the push side and synthetic events on the poll side. The
// engine treats everything beyond AlertType/DeviceIP/IsClear as opaque
// passthrough.
type ParsedAlert struct {
	AlertType  string
	DeviceIP   string
	DeviceName *string

	// Discriminator distinguishes multiple concurrent instances of the same
	// alert type on one device (e.g. a port number or sensor name). A nil
	// discriminator is a different identity than an empty string.
	Discriminator *string

	Severity Severity
	Category string
	Title    string
	Message  string

	// IsClear marks the event as a clearing condition: the previously
	// reported problem no longer holds.
	IsClear bool

	// Timestamp is the source-reported event time; zero means unknown and
	// falls back to ingestion time.
	Timestamp time.Time

	RawData map[string]interface{}
}

// Severity is re-exported so adapters and pollers don't need to import the
// database package for the enum alone.
type Severity = database.Severity

// NormalizeSeverity maps source-specific severity strings onto the ordered
// enum. Unknown values default to warning.
func NormalizeSeverity(severity string) Severity {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical", "disaster", "emergency", "fatal", "p1", "5":
		return database.SeverityCritical
	case "major", "high", "error", "severe", "p2", "4":
		return database.SeverityMajor
	case "minor", "average", "p3", "3":
		return database.SeverityMinor
	case "warning", "warn", "2":
		return database.SeverityWarning
	case "info", "informational", "information", "notice", "low", "debug", "p4", "1", "0":
		return database.SeverityInfo
	}
	return database.SeverityWarning
}

// IsClearStatus reports whether a source status string asserts recovery
func IsClearStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "resolved", "ok", "recovery", "recovered", "clear", "cleared", "inactive", "up":
		return true
	}
	return false
}
