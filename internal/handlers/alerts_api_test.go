package handlers

import (
	"net/http"
	"testing"

	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
	"github.com/netpulse/netpulse/internal/testhelpers"
)

func setupAlertAPI(t *testing.T) (*AlertAPIHandler, *engine.Engine) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	eng := engine.New(db)
	return NewAlertAPIHandler(eng), eng
}

func seedAlert(t *testing.T, eng *engine.Engine, alertType string) *database.Alert {
	t.Helper()
	alert, err := eng.Process(testhelpers.NewParsedAlertBuilder().WithType(alertType).Build(), "test-addon")
	if err != nil {
		t.Fatalf("failed to seed alert: %v", err)
	}
	return alert
}

func TestListAlerts(t *testing.T) {
	h, eng := setupAlertAPI(t)
	seedAlert(t, eng, "cpu_high")
	seedAlert(t, eng, "mem_high")

	var resp struct {
		Alerts []database.Alert `json:"alerts"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/alerts", nil).
		ExecuteFunc(h.handleAlerts).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if len(resp.Alerts) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(resp.Alerts))
	}
}

func TestListAlerts_StatusFilter(t *testing.T) {
	h, eng := setupAlertAPI(t)
	open := seedAlert(t, eng, "cpu_high")
	resolved := seedAlert(t, eng, "mem_high")
	if _, err := eng.Resolve(resolved.UUID, database.ResolutionManual); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var resp struct {
		Alerts []database.Alert `json:"alerts"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/alerts?status=active", nil).
		ExecuteFunc(h.handleAlerts).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if len(resp.Alerts) != 1 || resp.Alerts[0].UUID != open.UUID {
		t.Errorf("expected only the active alert, got %+v", resp.Alerts)
	}
}

func TestGetAlert(t *testing.T) {
	h, eng := setupAlertAPI(t)
	created := seedAlert(t, eng, "cpu_high")

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/alerts/"+created.UUID, nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusOK).
		AssertBodyContains(created.UUID)
}

func TestGetAlert_NotFound(t *testing.T) {
	h, _ := setupAlertAPI(t)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/alerts/missing-uuid", nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusNotFound)
}

func TestAcknowledgeAlert(t *testing.T) {
	h, eng := setupAlertAPI(t)
	created := seedAlert(t, eng, "cpu_high")

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/alerts/"+created.UUID+"/acknowledge", nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusOK).
		AssertBodyContains("acknowledged")

	// Second acknowledge conflicts.
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/alerts/"+created.UUID+"/acknowledge", nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusConflict).
		AssertBodyContains("invalid_state")
}

func TestResolveAlert(t *testing.T) {
	h, eng := setupAlertAPI(t)
	created := seedAlert(t, eng, "cpu_high")

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/alerts/"+created.UUID+"/resolve", nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"resolution_source":"manual"`)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/alerts/"+created.UUID+"/resolve", nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusConflict).
		AssertBodyContains("already_resolved")
}

func TestDeleteAlert(t *testing.T) {
	h, eng := setupAlertAPI(t)
	created := seedAlert(t, eng, "cpu_high")

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, "/api/alerts/"+created.UUID, nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusNoContent)

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, "/api/alerts/"+created.UUID, nil).
		ExecuteFunc(h.handleAlert).
		AssertStatus(http.StatusNotFound)
}

func TestAlertStats(t *testing.T) {
	h, eng := setupAlertAPI(t)
	seedAlert(t, eng, "cpu_high")

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/alerts/stats", nil).
		ExecuteFunc(h.handleStats).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"total_active":1`)
}
