package handlers

import (
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
	"github.com/netpulse/netpulse/internal/poller"
	"github.com/netpulse/netpulse/internal/testhelpers"
)

func setupTargetAPI(t *testing.T) (*TargetAPIHandler, *gorm.DB, *engine.Engine) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	eng := engine.New(db)
	d := poller.NewDispatcher(db, eng, poller.DefaultConfig())
	h := NewTargetAPIHandler(db, eng, d)

	addon := testhelpers.NewAddonRecordBuilder().
		WithName("cisco-switch").
		WithMethod(database.MethodSNMPPoll).
		WithDefaultPollInterval(120).
		Build()
	if err := db.Create(&addon).Error; err != nil {
		t.Fatalf("failed to create addon: %v", err)
	}
	return h, db, eng
}

func TestCreateTarget(t *testing.T) {
	h, db, _ := setupTargetAPI(t)

	var created database.Target
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/targets", nil).
		WithJSONBody(map[string]interface{}{
			"name":       "core-sw-01",
			"ip_address": "10.0.0.1",
			"addon_id":   "cisco-switch",
		}).
		ExecuteFunc(h.handleTargets).
		AssertStatus(http.StatusCreated).
		DecodeJSON(&created)

	if created.UUID == "" {
		t.Error("expected UUID assigned")
	}
	// Poll interval defaults from the addon manifest.
	if created.PollInterval != 120 {
		t.Errorf("expected poll interval 120 from addon default, got %d", created.PollInterval)
	}
	if !created.Enabled {
		t.Error("expected target enabled by default")
	}

	var count int64
	db.Model(&database.Target{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 target, got %d", count)
	}
}

func TestCreateTarget_UnknownAddon(t *testing.T) {
	h, _, _ := setupTargetAPI(t)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/targets", nil).
		WithJSONBody(map[string]interface{}{
			"ip_address": "10.0.0.1",
			"addon_id":   "no-such-addon",
		}).
		ExecuteFunc(h.handleTargets).
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("Unknown addon")
}

func TestCreateTarget_MissingFields(t *testing.T) {
	h, _, _ := setupTargetAPI(t)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/targets", nil).
		WithJSONBody(map[string]interface{}{"name": "incomplete"}).
		ExecuteFunc(h.handleTargets).
		AssertStatus(http.StatusBadRequest)
}

func TestListTargets(t *testing.T) {
	h, db, _ := setupTargetAPI(t)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		target := testhelpers.NewTargetBuilder().WithIP(ip).WithAddon("cisco-switch").Build()
		if err := db.Create(&target).Error; err != nil {
			t.Fatalf("failed to create target: %v", err)
		}
	}

	var resp struct {
		Targets []database.Target `json:"targets"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/targets", nil).
		ExecuteFunc(h.handleTargets).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if len(resp.Targets) != 2 {
		t.Errorf("expected 2 targets, got %d", len(resp.Targets))
	}
}

func TestUpdateTarget(t *testing.T) {
	h, db, _ := setupTargetAPI(t)

	target := testhelpers.NewTargetBuilder().WithAddon("cisco-switch").Build()
	if err := db.Create(&target).Error; err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	enabled := false
	testhelpers.NewHTTPTestContext(t, http.MethodPut, "/api/targets/"+target.UUID, nil).
		WithJSONBody(map[string]interface{}{
			"poll_interval": 300,
			"enabled":       enabled,
		}).
		ExecuteFunc(h.handleTarget).
		AssertStatus(http.StatusOK)

	var stored database.Target
	if err := db.First(&stored, target.ID).Error; err != nil {
		t.Fatalf("failed to re-read target: %v", err)
	}
	if stored.PollInterval != 300 {
		t.Errorf("expected poll interval 300, got %d", stored.PollInterval)
	}
	if stored.Enabled {
		t.Error("expected target disabled")
	}
}

func TestDeleteTarget_ResolvesAlerts(t *testing.T) {
	h, db, eng := setupTargetAPI(t)

	target := testhelpers.NewTargetBuilder().
		WithIP("10.0.0.7").WithAddon("cisco-switch").Build()
	if err := db.Create(&target).Error; err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	alert, err := eng.Process(testhelpers.NewParsedAlertBuilder().
		WithType("port_down").WithDeviceIP("10.0.0.7").Build(), "cisco-switch")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, "/api/targets/"+target.UUID, nil).
		ExecuteFunc(h.handleTarget).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"alerts_resolved":1`)

	var stored database.Alert
	if err := db.First(&stored, alert.ID).Error; err != nil {
		t.Fatalf("failed to re-read alert: %v", err)
	}
	if stored.Status != database.AlertStatusResolved {
		t.Errorf("expected alert auto-resolved on target delete, got %s", stored.Status)
	}

	var count int64
	db.Model(&database.Target{}).Count(&count)
	if count != 0 {
		t.Errorf("expected target deleted, %d remain", count)
	}
}

func TestDeleteTarget_NotFound(t *testing.T) {
	h, _, _ := setupTargetAPI(t)

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, "/api/targets/missing-uuid", nil).
		ExecuteFunc(h.handleTarget).
		AssertStatus(http.StatusNotFound)
}
