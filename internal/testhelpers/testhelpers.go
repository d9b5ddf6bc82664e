// Package testhelpers provides reusable testing utilities for NetPulse.
//
// This package contains:
// - An in-memory test database constructor
// - HTTP test helpers (building requests, asserting responses)
// - Mock implementations (webhook adapters)
// - Data builders for alerts and targets
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netpulse/netpulse/internal/alerts"
	"github.com/netpulse/netpulse/internal/database"
)

// ========================================
// Database Test Helpers
// ========================================

// NewTestDB opens an in-memory database with all models migrated
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&database.Alert{},
		&database.Target{},
		&database.AddonRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// ExecuteFunc runs the handler func and returns the response
func (ctx *HTTPTestContext) ExecuteFunc(handler http.HandlerFunc) *HTTPTestContext {
	handler(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Mock Webhook Adapter
// ========================================

// MockWebhookAdapter implements alerts.WebhookAdapter for testing
type MockWebhookAdapter struct {
	Source       string
	ParsedAlerts []alerts.ParsedAlert
	ParseError   error
	ParseCalled  bool
}

// NewMockWebhookAdapter creates a new mock adapter
func NewMockWebhookAdapter(source string) *MockWebhookAdapter {
	return &MockWebhookAdapter{Source: source}
}

// SourceType returns the source type
func (m *MockWebhookAdapter) SourceType() string {
	return m.Source
}

// Parse parses the webhook payload
func (m *MockWebhookAdapter) Parse(body []byte) ([]alerts.ParsedAlert, error) {
	m.ParseCalled = true
	if m.ParseError != nil {
		return nil, m.ParseError
	}
	return m.ParsedAlerts, nil
}

// WithAlerts configures alerts to return from Parse
func (m *MockWebhookAdapter) WithAlerts(parsed ...alerts.ParsedAlert) *MockWebhookAdapter {
	m.ParsedAlerts = parsed
	return m
}

// WithParseError configures Parse to return an error
func (m *MockWebhookAdapter) WithParseError(err error) *MockWebhookAdapter {
	m.ParseError = err
	return m
}

// ========================================
// Sample Data Builders
// ========================================

// ParsedAlertBuilder builds ParsedAlert instances for testing
type ParsedAlertBuilder struct {
	alert alerts.ParsedAlert
}

// NewParsedAlertBuilder creates a new alert builder with defaults
func NewParsedAlertBuilder() *ParsedAlertBuilder {
	return &ParsedAlertBuilder{
		alert: alerts.ParsedAlert{
			AlertType: "test_alert",
			DeviceIP:  "192.0.2.10",
			Severity:  database.SeverityWarning,
			Category:  "testing",
			Title:     "Test alert",
			Message:   "Test alert message",
			Timestamp: time.Now(),
		},
	}
}

// WithType sets the alert type
func (b *ParsedAlertBuilder) WithType(alertType string) *ParsedAlertBuilder {
	b.alert.AlertType = alertType
	return b
}

// WithDeviceIP sets the device IP
func (b *ParsedAlertBuilder) WithDeviceIP(ip string) *ParsedAlertBuilder {
	b.alert.DeviceIP = ip
	return b
}

// WithSeverity sets the severity
func (b *ParsedAlertBuilder) WithSeverity(severity database.Severity) *ParsedAlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithDiscriminator sets the discriminator
func (b *ParsedAlertBuilder) WithDiscriminator(d string) *ParsedAlertBuilder {
	b.alert.Discriminator = &d
	return b
}

// WithCategory sets the category
func (b *ParsedAlertBuilder) WithCategory(category string) *ParsedAlertBuilder {
	b.alert.Category = category
	return b
}

// WithMessage sets the message
func (b *ParsedAlertBuilder) WithMessage(message string) *ParsedAlertBuilder {
	b.alert.Message = message
	return b
}

// AsClear marks the alert as a clear notification
func (b *ParsedAlertBuilder) AsClear() *ParsedAlertBuilder {
	b.alert.IsClear = true
	return b
}

// Build returns the constructed alert
func (b *ParsedAlertBuilder) Build() alerts.ParsedAlert {
	return b.alert
}

// TargetBuilder builds Target instances for testing
type TargetBuilder struct {
	target database.Target
}

// NewTargetBuilder creates a new target builder with defaults
func NewTargetBuilder() *TargetBuilder {
	return &TargetBuilder{
		target: database.Target{
			Name:         "test-target",
			IPAddress:    "192.0.2.10",
			AddonID:      "test-addon",
			PollInterval: 60,
			Enabled:      true,
		},
	}
}

// WithName sets the target name
func (b *TargetBuilder) WithName(name string) *TargetBuilder {
	b.target.Name = name
	return b
}

// WithIP sets the IP address
func (b *TargetBuilder) WithIP(ip string) *TargetBuilder {
	b.target.IPAddress = ip
	return b
}

// WithAddon sets the addon ID
func (b *TargetBuilder) WithAddon(addonID string) *TargetBuilder {
	b.target.AddonID = addonID
	return b
}

// WithPollInterval sets the poll interval in seconds
func (b *TargetBuilder) WithPollInterval(seconds int) *TargetBuilder {
	b.target.PollInterval = seconds
	return b
}

// WithConfig sets the target config
func (b *TargetBuilder) WithConfig(cfg database.JSONB) *TargetBuilder {
	b.target.Config = cfg
	return b
}

// WithLastPollAt sets the last poll timestamp
func (b *TargetBuilder) WithLastPollAt(at time.Time) *TargetBuilder {
	b.target.LastPollAt = &at
	return b
}

// Disabled marks the target as disabled
func (b *TargetBuilder) Disabled() *TargetBuilder {
	b.target.Enabled = false
	return b
}

// Build returns the constructed target
func (b *TargetBuilder) Build() database.Target {
	return b.target
}

// AddonRecordBuilder builds AddonRecord instances for testing
type AddonRecordBuilder struct {
	addon database.AddonRecord
}

// NewAddonRecordBuilder creates a new addon record builder with defaults
func NewAddonRecordBuilder() *AddonRecordBuilder {
	return &AddonRecordBuilder{
		addon: database.AddonRecord{
			Name:                "test-addon",
			Method:              database.MethodSNMPPoll,
			DefaultPollInterval: 60,
			Enabled:             true,
		},
	}
}

// WithName sets the addon name
func (b *AddonRecordBuilder) WithName(name string) *AddonRecordBuilder {
	b.addon.Name = name
	return b
}

// WithMethod sets the addon method
func (b *AddonRecordBuilder) WithMethod(method database.AddonMethod) *AddonRecordBuilder {
	b.addon.Method = method
	return b
}

// WithDefaultPollInterval sets the default poll interval
func (b *AddonRecordBuilder) WithDefaultPollInterval(seconds int) *AddonRecordBuilder {
	b.addon.DefaultPollInterval = seconds
	return b
}

// Disabled marks the addon as disabled
func (b *AddonRecordBuilder) Disabled() *AddonRecordBuilder {
	b.addon.Enabled = false
	return b
}

// Build returns the constructed addon record
func (b *AddonRecordBuilder) Build() database.AddonRecord {
	return b.addon
}
