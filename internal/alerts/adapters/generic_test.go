package adapters

import (
	"testing"
	"time"

	"github.com/netpulse/netpulse/internal/database"
)

func TestGenericAdapter_SingleAlert(t *testing.T) {
	a := NewGenericAdapter()

	body := []byte(`{
		"alert_type": "cpu_high",
		"device_ip": "10.0.0.1",
		"severity": "critical",
		"category": "performance",
		"message": "CPU at 98%",
		"timestamp": "2026-08-20T10:30:00Z"
	}`)

	parsed, err := a.Parse(body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(parsed))
	}

	p := parsed[0]
	if p.AlertType != "cpu_high" || p.DeviceIP != "10.0.0.1" {
		t.Errorf("unexpected identity fields: %+v", p)
	}
	if p.Severity != database.SeverityCritical {
		t.Errorf("expected severity critical, got %s", p.Severity)
	}
	if p.IsClear {
		t.Error("expected non-clear alert")
	}

	want := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	if !p.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, p.Timestamp)
	}
}

func TestGenericAdapter_Batch(t *testing.T) {
	a := NewGenericAdapter()

	body := []byte(`{"alerts": [
		{"alert_type": "cpu_high", "device_ip": "10.0.0.1"},
		{"alert_type": "mem_high", "device_ip": "10.0.0.2", "discriminator": "bank0"}
	]}`)

	parsed, err := a.Parse(body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(parsed))
	}
	if parsed[1].Discriminator == nil || *parsed[1].Discriminator != "bank0" {
		t.Errorf("expected discriminator bank0, got %v", parsed[1].Discriminator)
	}
}

func TestGenericAdapter_ClearFromStatus(t *testing.T) {
	a := NewGenericAdapter()

	parsed, err := a.Parse([]byte(`{"alert_type": "cpu_high", "device_ip": "10.0.0.1", "status": "resolved"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !parsed[0].IsClear {
		t.Error("expected resolved status to mark the alert clear")
	}
}

func TestGenericAdapter_IsClearOverridesStatus(t *testing.T) {
	a := NewGenericAdapter()

	parsed, err := a.Parse([]byte(`{"alert_type": "cpu_high", "device_ip": "10.0.0.1", "status": "resolved", "is_clear": false}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed[0].IsClear {
		t.Error("expected explicit is_clear=false to override status")
	}
}

func TestGenericAdapter_MissingRequiredFields(t *testing.T) {
	a := NewGenericAdapter()

	if _, err := a.Parse([]byte(`{"device_ip": "10.0.0.1"}`)); err == nil {
		t.Error("expected error for missing alert_type")
	}
	if _, err := a.Parse([]byte(`{"alert_type": "cpu_high"}`)); err == nil {
		t.Error("expected error for missing device_ip")
	}
}

func TestGenericAdapter_InvalidJSON(t *testing.T) {
	a := NewGenericAdapter()
	if _, err := a.Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
