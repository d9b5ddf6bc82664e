package engine

import (
	"time"

	"gorm.io/gorm"

	"github.com/netpulse/netpulse/internal/database"
)

// Bulk auto-resolution. Each operation reads the open set and runs the bulk
// UPDATE inside one transaction, so the emitted events describe exactly the
// rows that were resolved. Every affected row gets the same resolved_at and
// keeps its own occurrence_count and acknowledged_at untouched. Event
// granularity is one aggregate alert_resolved per affected alert_type
// (carrying a representative row) rather than one per row, to bound
// broadcast volume.

// ResolveForDevice auto-resolves all non-resolved alerts for a device.
// Called when a target is deleted from monitoring.
func (e *Engine) ResolveForDevice(deviceIP string) (int64, error) {
	var open []database.Alert
	var resolved int64
	now := time.Now()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_ip = ? AND status IN ?", deviceIP, database.OpenStatuses()).
			Find(&open).Error; err != nil {
			return err
		}
		if len(open) == 0 {
			return nil
		}

		res := tx.Model(&database.Alert{}).
			Where("device_ip = ? AND status IN ?", deviceIP, database.OpenStatuses()).
			Updates(map[string]interface{}{
				"status":            database.AlertStatusResolved,
				"resolved_at":       now,
				"resolution_source": database.ResolutionAuto,
			})
		if res.Error != nil {
			return res.Error
		}
		resolved = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	if resolved > 0 {
		e.emitPerType(open, now)
	}
	return resolved, nil
}

// ResolveForAddonTypes auto-resolves all non-resolved alerts of the given
// types for an addon. Called when an addon manifest update disables alert
// types.
func (e *Engine) ResolveForAddonTypes(addonID string, alertTypes []string) (int64, error) {
	if len(alertTypes) == 0 {
		return 0, nil
	}

	var open []database.Alert
	var resolved int64
	now := time.Now()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("addon_id = ? AND alert_type IN ? AND status IN ?",
			addonID, alertTypes, database.OpenStatuses()).
			Find(&open).Error; err != nil {
			return err
		}
		if len(open) == 0 {
			return nil
		}

		res := tx.Model(&database.Alert{}).
			Where("addon_id = ? AND alert_type IN ? AND status IN ?",
				addonID, alertTypes, database.OpenStatuses()).
			Updates(map[string]interface{}{
				"status":            database.AlertStatusResolved,
				"resolved_at":       now,
				"resolution_source": database.ResolutionAuto,
			})
		if res.Error != nil {
			return res.Error
		}
		resolved = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	if resolved > 0 {
		e.emitPerType(open, now)
	}
	return resolved, nil
}

// emitPerType emits one aggregate alert_resolved event per alert_type,
// using the most recent affected row as the representative.
func (e *Engine) emitPerType(affected []database.Alert, resolvedAt time.Time) {
	byType := make(map[string]*database.Alert)
	for i := range affected {
		a := &affected[i]
		rep, ok := byType[a.AlertType]
		if !ok || a.ReceivedAt.After(rep.ReceivedAt) {
			byType[a.AlertType] = a
		}
	}
	for _, rep := range byType {
		rep.Status = database.AlertStatusResolved
		rep.ResolvedAt = &resolvedAt
		rep.ResolutionSource = database.ResolutionAuto
		e.emit(EventAlertResolved, rep)
	}
}
