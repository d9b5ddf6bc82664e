package addons

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
)

// Registry syncs loaded manifests into addon records and reconciles alert
// state when a manifest update disables alert types.
type Registry struct {
	db     *gorm.DB
	engine *engine.Engine
}

// NewRegistry creates an addon registry
func NewRegistry(db *gorm.DB, eng *engine.Engine) *Registry {
	return &Registry{db: db, engine: eng}
}

// Sync upserts each manifest into the addons table. When a manifest no
// longer enables an alert type it previously enabled, all open alerts of
// that type for the addon are auto-resolved.
func (r *Registry) Sync(manifests []*Manifest) error {
	for _, m := range manifests {
		if err := r.syncOne(m); err != nil {
			return fmt.Errorf("failed to sync addon %s: %w", m.Name, err)
		}
	}
	return nil
}

func (r *Registry) syncOne(m *Manifest) error {
	manifestPayload := database.JSONB{
		"enabled_alert_types": toInterfaceSlice(m.EnabledAlertTypes()),
		"all_alert_types":     toInterfaceSlice(m.AllAlertTypes()),
	}

	var existing database.AddonRecord
	err := r.db.Where("name = ?", m.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record := database.AddonRecord{
			Name:                m.Name,
			DisplayName:         m.DisplayName,
			Method:              m.Method,
			DefaultPollInterval: m.DefaultPollInterval,
			Manifest:            manifestPayload,
			Enabled:             true,
		}
		if err := r.db.Create(&record).Error; err != nil {
			return err
		}
		log.Printf("Registered addon: %s (%s)", m.Name, m.Method)
		return nil
	}
	if err != nil {
		return err
	}

	previouslyEnabled := manifestStringSlice(existing.Manifest, "enabled_alert_types")
	nowEnabled := make(map[string]bool)
	for _, t := range m.EnabledAlertTypes() {
		nowEnabled[t] = true
	}
	var disabled []string
	for _, t := range previouslyEnabled {
		if !nowEnabled[t] {
			disabled = append(disabled, t)
		}
	}

	updates := map[string]interface{}{
		"display_name":          m.DisplayName,
		"method":                m.Method,
		"default_poll_interval": m.DefaultPollInterval,
		"manifest":              manifestPayload,
	}
	if err := r.db.Model(&existing).Updates(updates).Error; err != nil {
		return err
	}

	if len(disabled) > 0 {
		resolved, err := r.engine.ResolveForAddonTypes(m.Name, disabled)
		if err != nil {
			return fmt.Errorf("failed to resolve alerts for disabled types %v: %w", disabled, err)
		}
		log.Printf("Addon %s disabled alert types %v, auto-resolved %d alerts", m.Name, disabled, resolved)
	}
	return nil
}

// Get returns an addon record by name
func (r *Registry) Get(name string) (*database.AddonRecord, error) {
	var record database.AddonRecord
	if err := r.db.Where("name = ?", name).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func manifestStringSlice(payload database.JSONB, key string) []string {
	raw, ok := payload[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
