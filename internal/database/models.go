package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Severity represents normalized alert severity levels, ordered from least
// to most severe: info < warning < minor < major < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// severityRank maps severities to their position in the ordering.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityMinor:    2,
	SeverityMajor:    3,
	SeverityCritical: 4,
}

// Rank returns the numeric rank of the severity, or -1 if unknown.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// ResolutionSource records how an alert was resolved
type ResolutionSource string

const (
	ResolutionAuto   ResolutionSource = "auto"
	ResolutionManual ResolutionSource = "manual"
)

// AddonMethod is the closed set of polling/ingestion methods an addon may use
type AddonMethod string

const (
	MethodSNMPPoll AddonMethod = "snmp_poll"
	MethodAPIPoll  AddonMethod = "api_poll"
	MethodSSH      AddonMethod = "ssh"
	MethodSNMPTrap AddonMethod = "snmp_trap"
	MethodWebhook  AddonMethod = "webhook"
)

// PolledMethods are the methods the dispatcher actively polls.
// Trap and webhook addons are push-only and never enter the due-set.
var PolledMethods = []AddonMethod{MethodSNMPPoll, MethodAPIPoll, MethodSSH}

// IsPolled reports whether targets of this method are polled by the dispatcher
func (m AddonMethod) IsPolled() bool {
	for _, pm := range PolledMethods {
		if m == pm {
			return true
		}
	}
	return false
}

// Alert is the central entity: one row per logical alert occurrence stream.
// Fingerprint uniqueness holds only among non-resolved rows; a resolved
// alert's fingerprint may be reused by a new occurrence, which creates a new
// row so history is preserved.
type Alert struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UUID        string      `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Fingerprint string      `gorm:"size:64;not null;index" json:"fingerprint"`
	AddonID     string      `gorm:"size:64;not null;index" json:"addon_id"`
	DeviceIP    string      `gorm:"size:45;not null;index" json:"device_ip"`
	DeviceName  *string     `gorm:"size:255" json:"device_name,omitempty"`
	AlertType   string      `gorm:"size:128;not null;index" json:"alert_type"`
	Severity    Severity    `gorm:"type:varchar(20);not null" json:"severity"`
	Category    string      `gorm:"size:64" json:"category"`
	Title       string      `gorm:"size:255" json:"title"`
	Message     string      `gorm:"type:text" json:"message"`
	Status      AlertStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsClear     bool        `gorm:"default:false" json:"is_clear"`

	OccurredAt     time.Time  `gorm:"not null" json:"occurred_at"`
	ReceivedAt     time.Time  `gorm:"not null;index" json:"received_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	OccurrenceCount  int              `gorm:"not null;default:1" json:"occurrence_count"`
	RawData          JSONB            `gorm:"type:jsonb" json:"raw_data"`
	ResolutionSource ResolutionSource `gorm:"type:varchar(20)" json:"resolution_source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID and fills the timestamps that default to now
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	now := time.Now()
	if a.ReceivedAt.IsZero() {
		a.ReceivedAt = now
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = a.ReceivedAt
	}
	if a.OccurrenceCount == 0 {
		a.OccurrenceCount = 1
	}
	return nil
}

// IsOpen reports whether the alert is still active or acknowledged
func (a *Alert) IsOpen() bool {
	return a.Status != AlertStatusResolved
}

func (Alert) TableName() string {
	return "alerts"
}

// OpenStatuses returns the statuses that participate in deduplication
func OpenStatuses() []AlertStatus {
	return []AlertStatus{AlertStatusActive, AlertStatusAcknowledged}
}

// Target is a monitored device the dispatcher polls.
// Config carries credentials and discovery results as an opaque payload.
type Target struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UUID         string     `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Name         string     `gorm:"size:255" json:"name"`
	IPAddress    string     `gorm:"size:45;not null;index" json:"ip_address"`
	AddonID      string     `gorm:"size:64;not null;index" json:"addon_id"`
	PollInterval int        `gorm:"not null;default:60" json:"poll_interval"` // seconds
	Enabled      bool       `gorm:"default:true" json:"enabled"`
	Config       JSONB      `gorm:"type:jsonb" json:"config"`
	LastPollAt   *time.Time `json:"last_poll_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a UUID
func (t *Target) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == "" {
		t.UUID = uuid.New().String()
	}
	return nil
}

// Due reports whether the target's polling interval has elapsed as of now
func (t *Target) Due(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	if t.LastPollAt == nil {
		return true
	}
	return now.Sub(*t.LastPollAt) >= time.Duration(t.PollInterval)*time.Second
}

func (Target) TableName() string {
	return "targets"
}

// AddonRecord is the persisted registration of a loaded addon manifest.
// The engine consumes only the addon id, its enabled alert-type set, and
// (for dispatch) the method.
type AddonRecord struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	Name                string      `gorm:"uniqueIndex;size:64;not null" json:"name"`
	DisplayName         string      `gorm:"size:128" json:"display_name"`
	Method              AddonMethod `gorm:"type:varchar(20);not null" json:"method"`
	DefaultPollInterval int         `gorm:"not null;default:60" json:"default_poll_interval"`
	Manifest            JSONB       `gorm:"type:jsonb" json:"manifest"`
	Enabled             bool        `gorm:"default:true" json:"enabled"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (AddonRecord) TableName() string {
	return "addons"
}
