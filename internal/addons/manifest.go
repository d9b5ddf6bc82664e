package addons

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/netpulse/netpulse/internal/database"
)

// AlertDef declares one alert type an addon can raise
type AlertDef struct {
	AlertType   string `yaml:"alert_type" json:"alert_type"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Description string `yaml:"description" json:"description"`
	Severity    string `yaml:"severity" json:"severity"`
}

// AlertMapping groups alert definitions, mirroring the manifest layout
type AlertMapping struct {
	Alerts []AlertDef `yaml:"alerts" json:"alerts"`
}

// Manifest is an addon definition loaded from a YAML file. It declares the
// ingestion method, the polling cadence, and the alert types the addon may
// raise.
type Manifest struct {
	Name                string               `yaml:"name"`
	DisplayName         string               `yaml:"display_name"`
	Method              database.AddonMethod `yaml:"method"`
	DefaultPollInterval int                  `yaml:"default_poll_interval"`
	AlertMappings       []AlertMapping       `yaml:"alert_mappings"`
}

// Validate checks the manifest for the fields every addon must carry
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest missing name")
	}
	switch m.Method {
	case database.MethodSNMPPoll, database.MethodAPIPoll, database.MethodSSH,
		database.MethodSNMPTrap, database.MethodWebhook:
	default:
		return fmt.Errorf("manifest %s has unknown method %q", m.Name, m.Method)
	}
	if m.DefaultPollInterval <= 0 {
		m.DefaultPollInterval = 60
	}
	return nil
}

// EnabledAlertTypes returns the set of alert types this manifest enables
func (m *Manifest) EnabledAlertTypes() []string {
	var types []string
	for _, mapping := range m.AlertMappings {
		for _, def := range mapping.Alerts {
			if def.Enabled {
				types = append(types, def.AlertType)
			}
		}
	}
	return types
}

// AllAlertTypes returns every alert type the manifest declares, enabled or
// not.
func (m *Manifest) AllAlertTypes() []string {
	var types []string
	for _, mapping := range m.AlertMappings {
		for _, def := range mapping.Alerts {
			types = append(types, def.AlertType)
		}
	}
	return types
}

// Parse decodes a single manifest document
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadDir loads every .yaml/.yml manifest in dir. A missing directory is
// not an error; running without addons is a valid configuration.
func LoadDir(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read addons dir %s: %w", dir, err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", entry.Name(), err)
		}
		m, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", entry.Name(), err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
