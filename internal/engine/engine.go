package engine

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/netpulse/netpulse/internal/alerts"
	"github.com/netpulse/netpulse/internal/database"
)

// EventType identifies a lifecycle transition broadcast to subscribers
type EventType string

const (
	EventAlertCreated  EventType = "alert_created"
	EventAlertUpdated  EventType = "alert_updated"
	EventAlertResolved EventType = "alert_resolved"
)

// EventCallback receives lifecycle events. Callbacks are invoked after the
// triggering mutation has been committed; failures are logged and never
// propagate to the caller.
type EventCallback func(event EventType, alert *database.Alert)

// lockStripes is the number of fingerprint lock stripes. Per-fingerprint
// transitions must be serialized so two near-simultaneous signals for a new
// fingerprint cannot race and create duplicate rows.
const lockStripes = 64

// Engine is the alert state machine. It deduplicates incoming signals by
// fingerprint, manages status transitions, and fans lifecycle events out to
// registered callbacks. The database is the single source of truth; the
// engine keeps no authoritative in-memory alert state.
type Engine struct {
	db    *gorm.DB
	locks [lockStripes]sync.Mutex

	cbMu      sync.RWMutex
	callbacks []EventCallback
}

// New creates an alert engine backed by the given database
func New(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// RegisterEventCallback appends a callback to the broadcast list.
// Registration is process-lifetime; there is no unregistration.
func (e *Engine) RegisterEventCallback(fn EventCallback) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.callbacks = append(e.callbacks, fn)
}

func (e *Engine) lockFor(fingerprint string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	return &e.locks[h.Sum32()%lockStripes]
}

// Process is the ingestion entry point for push and synthetic-poll events
// alike. It deduplicates by fingerprint against non-resolved alerts:
// clearing signals resolve the matching alert (or no-op when none exists),
// non-clear signals update the matching alert in place or create a new one.
//
// When a clearing signal finds no open alert, the returned alert has ID 0
// and is not persisted: a clear without a predecessor never creates a row.
func (e *Engine) Process(parsed alerts.ParsedAlert, addonID string) (*database.Alert, error) {
	if parsed.AlertType == "" || parsed.DeviceIP == "" {
		return nil, fmt.Errorf("parsed alert missing alert_type or device_ip")
	}

	fp := alerts.FingerprintFor(parsed, addonID)

	mu := e.lockFor(fp)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	occurredAt := parsed.Timestamp
	if occurredAt.IsZero() {
		occurredAt = now
	}

	var result *database.Alert
	var event EventType
	emit := false

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var existing database.Alert
		lookupErr := tx.Where("fingerprint = ? AND status IN ?", fp, database.OpenStatuses()).
			Order("id DESC").First(&existing).Error
		found := lookupErr == nil
		if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}

		if parsed.IsClear {
			if !found {
				// Already clear: acknowledge the signal without a row.
				result = &database.Alert{
					Fingerprint: fp,
					AddonID:     addonID,
					DeviceIP:    parsed.DeviceIP,
					AlertType:   parsed.AlertType,
					Status:      database.AlertStatusResolved,
					IsClear:     true,
				}
				return nil
			}
			updates := map[string]interface{}{
				"status":            database.AlertStatusResolved,
				"is_clear":          true,
				"resolved_at":       now,
				"resolution_source": database.ResolutionAuto,
				"received_at":       now,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			result = &existing
			event = EventAlertResolved
			emit = true
			return nil
		}

		if found {
			// Repeated occurrence: refresh in place. Severity and category
			// are last-write-wins, matching the source system's policy.
			updates := map[string]interface{}{
				"occurrence_count": gorm.Expr("occurrence_count + 1"),
				"message":          parsed.Message,
				"received_at":      now,
				"occurred_at":      occurredAt,
				"is_clear":         false,
			}
			if parsed.Severity.Valid() {
				updates["severity"] = parsed.Severity
			}
			if parsed.Category != "" {
				updates["category"] = parsed.Category
			}
			if parsed.RawData != nil {
				updates["raw_data"] = database.JSONB(parsed.RawData)
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			// Re-read so the returned alert carries the incremented count.
			if err := tx.First(&existing, existing.ID).Error; err != nil {
				return err
			}
			result = &existing
			event = EventAlertUpdated
			emit = true
			return nil
		}

		severity := parsed.Severity
		if !severity.Valid() {
			severity = database.SeverityWarning
		}
		title := parsed.Title
		if title == "" {
			title = parsed.AlertType
		}
		created := database.Alert{
			Fingerprint:     fp,
			AddonID:         addonID,
			DeviceIP:        parsed.DeviceIP,
			DeviceName:      parsed.DeviceName,
			AlertType:       parsed.AlertType,
			Severity:        severity,
			Category:        parsed.Category,
			Title:           title,
			Message:         parsed.Message,
			Status:          database.AlertStatusActive,
			OccurredAt:      occurredAt,
			ReceivedAt:      now,
			OccurrenceCount: 1,
			RawData:         database.JSONB(parsed.RawData),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		result = &created
		event = EventAlertCreated
		emit = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process alert %s on %s: %w", parsed.AlertType, parsed.DeviceIP, err)
	}

	if emit {
		e.emit(event, result)
	}
	return result, nil
}

// Acknowledge transitions an active alert to acknowledged.
// Only operator action reaches this path; polling never acknowledges.
func (e *Engine) Acknowledge(alertUUID string) (*database.Alert, error) {
	alert, err := e.GetAlert(alertUUID)
	if err != nil {
		return nil, err
	}

	// Serialize on the fingerprint stripe so the status check cannot race
	// with Process or another operator transition on the same alert.
	mu := e.lockFor(alert.Fingerprint)
	mu.Lock()
	defer mu.Unlock()

	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("uuid = ?", alertUUID).First(alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if alert.Status == database.AlertStatusResolved {
			return &AlreadyResolvedError{UUID: alertUUID}
		}
		if alert.Status != database.AlertStatusActive {
			return &InvalidStateError{UUID: alertUUID, Status: alert.Status}
		}

		return tx.Model(alert).Updates(map[string]interface{}{
			"status":          database.AlertStatusAcknowledged,
			"acknowledged_at": time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	e.emit(EventAlertUpdated, alert)
	return alert, nil
}

// Resolve transitions a non-resolved alert to resolved, recording who
// resolved it. AcknowledgedAt is preserved so the history survives.
func (e *Engine) Resolve(alertUUID string, source database.ResolutionSource) (*database.Alert, error) {
	alert, err := e.GetAlert(alertUUID)
	if err != nil {
		return nil, err
	}

	mu := e.lockFor(alert.Fingerprint)
	mu.Lock()
	defer mu.Unlock()

	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("uuid = ?", alertUUID).First(alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if alert.Status == database.AlertStatusResolved {
			return &AlreadyResolvedError{UUID: alertUUID}
		}

		return tx.Model(alert).Updates(map[string]interface{}{
			"status":            database.AlertStatusResolved,
			"resolved_at":       time.Now(),
			"resolution_source": source,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	e.emit(EventAlertResolved, alert)
	return alert, nil
}

// AlertFilter narrows GetAlerts results. Zero values mean "no filter".
type AlertFilter struct {
	Status   database.AlertStatus
	Severity database.Severity
	AddonID  string
	DeviceIP string
}

// GetAlerts returns alerts matching the filter, most recently received
// first. The id tiebreak keeps pagination deterministic when many alerts
// share a received_at.
func (e *Engine) GetAlerts(filter AlertFilter, limit, offset int) ([]database.Alert, error) {
	q := e.db.Model(&database.Alert{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.AddonID != "" {
		q = q.Where("addon_id = ?", filter.AddonID)
	}
	if filter.DeviceIP != "" {
		q = q.Where("device_ip = ?", filter.DeviceIP)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var found []database.Alert
	err := q.Order("received_at DESC, id DESC").Find(&found).Error
	return found, err
}

// GetAlert returns a single alert by UUID
func (e *Engine) GetAlert(alertUUID string) (*database.Alert, error) {
	var alert database.Alert
	if err := e.db.Where("uuid = ?", alertUUID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// Stats aggregates alert counts over the current store state
type Stats struct {
	TotalActive int64            `json:"total_active"`
	BySeverity  map[string]int64 `json:"by_severity"`
	ByStatus    map[string]int64 `json:"by_status"`
	ByAddon     map[string]int64 `json:"by_addon"`
}

// GetStats returns aggregate counts. Severity and addon breakdowns cover
// open alerts only; the status breakdown covers all rows.
func (e *Engine) GetStats() (*Stats, error) {
	stats := &Stats{
		BySeverity: make(map[string]int64),
		ByStatus:   make(map[string]int64),
		ByAddon:    make(map[string]int64),
	}

	if err := e.db.Model(&database.Alert{}).
		Where("status = ?", database.AlertStatusActive).
		Count(&stats.TotalActive).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var rows []bucket
	if err := e.db.Model(&database.Alert{}).
		Select("severity AS key, COUNT(*) AS count").
		Where("status IN ?", database.OpenStatuses()).
		Group("severity").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.BySeverity[r.Key] = r.Count
	}

	rows = nil
	if err := e.db.Model(&database.Alert{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByStatus[r.Key] = r.Count
	}

	rows = nil
	if err := e.db.Model(&database.Alert{}).
		Select("addon_id AS key, COUNT(*) AS count").
		Where("status IN ?", database.OpenStatuses()).
		Group("addon_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByAddon[r.Key] = r.Count
	}

	return stats, nil
}

// DeleteAlert hard-deletes an alert row. Idempotent: returns false when no
// such alert exists.
func (e *Engine) DeleteAlert(alertUUID string) (bool, error) {
	res := e.db.Where("uuid = ?", alertUUID).Delete(&database.Alert{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// emit fans an event out to all registered callbacks. The callback list is
// copied under the read lock so registration cannot race invocation, and
// each callback is isolated: a panic or slow subscriber never affects the
// others or the caller.
func (e *Engine) emit(event EventType, alert *database.Alert) {
	e.cbMu.RLock()
	cbs := make([]EventCallback, len(e.callbacks))
	copy(cbs, e.callbacks)
	e.cbMu.RUnlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Alert event callback panicked on %s: %v", event, r)
				}
			}()
			cb(event, alert)
		}()
	}
}
