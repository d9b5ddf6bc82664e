package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/netpulse/netpulse/internal/api"
	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
)

// AlertAPIHandler exposes the alert engine over HTTP
type AlertAPIHandler struct {
	engine *engine.Engine
}

// NewAlertAPIHandler creates an alert API handler
func NewAlertAPIHandler(eng *engine.Engine) *AlertAPIHandler {
	return &AlertAPIHandler{engine: eng}
}

// SetupRoutes mounts the alert API routes
func (h *AlertAPIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/alerts", h.handleAlerts)
	mux.HandleFunc("/api/alerts/stats", h.handleStats)
	mux.HandleFunc("/api/alerts/", h.handleAlert)
}

// handleAlerts handles GET /api/alerts
func (h *AlertAPIHandler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	filter := engine.AlertFilter{
		Status:   database.AlertStatus(q.Get("status")),
		Severity: database.Severity(q.Get("severity")),
		AddonID:  q.Get("addon_id"),
		DeviceIP: q.Get("device_ip"),
	}

	p := api.ParsePagination(r)
	found, err := h.engine.GetAlerts(filter, p.PerPage, p.Offset())
	if err != nil {
		log.Printf("Failed to list alerts: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":   found,
		"page":     p.Page,
		"per_page": p.PerPage,
	})
}

// handleStats handles GET /api/alerts/stats
func (h *AlertAPIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.engine.GetStats()
	if err != nil {
		log.Printf("Failed to compute alert stats: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleAlert routes /api/alerts/{uuid} and /api/alerts/{uuid}/{action}
func (h *AlertAPIHandler) handleAlert(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	parts := strings.SplitN(strings.TrimSuffix(rest, "/"), "/", 2)
	alertUUID := parts[0]
	if alertUUID == "" {
		api.RespondError(w, http.StatusBadRequest, "Missing alert id")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getAlert(w, alertUUID)
	case action == "" && r.Method == http.MethodDelete:
		h.deleteAlert(w, alertUUID)
	case action == "acknowledge" && r.Method == http.MethodPost:
		h.acknowledgeAlert(w, alertUUID)
	case action == "resolve" && r.Method == http.MethodPost:
		h.resolveAlert(w, alertUUID)
	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *AlertAPIHandler) getAlert(w http.ResponseWriter, alertUUID string) {
	alert, err := h.engine.GetAlert(alertUUID)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

func (h *AlertAPIHandler) deleteAlert(w http.ResponseWriter, alertUUID string) {
	deleted, err := h.engine.DeleteAlert(alertUUID)
	if err != nil {
		log.Printf("Failed to delete alert %s: %v", alertUUID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}
	if !deleted {
		api.RespondError(w, http.StatusNotFound, "Alert not found")
		return
	}
	api.RespondNoContent(w)
}

func (h *AlertAPIHandler) acknowledgeAlert(w http.ResponseWriter, alertUUID string) {
	alert, err := h.engine.Acknowledge(alertUUID)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

func (h *AlertAPIHandler) resolveAlert(w http.ResponseWriter, alertUUID string) {
	alert, err := h.engine.Resolve(alertUUID, database.ResolutionManual)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// respondEngineError maps engine errors onto HTTP statuses
func (h *AlertAPIHandler) respondEngineError(w http.ResponseWriter, err error) {
	var invalidState *engine.InvalidStateError
	var alreadyResolved *engine.AlreadyResolvedError

	switch {
	case errors.Is(err, engine.ErrNotFound):
		api.RespondError(w, http.StatusNotFound, "Alert not found")
	case errors.As(err, &invalidState):
		api.RespondErrorWithCode(w, http.StatusConflict, "invalid_state", invalidState.Error())
	case errors.As(err, &alreadyResolved):
		api.RespondErrorWithCode(w, http.StatusConflict, "already_resolved", alreadyResolved.Error())
	default:
		log.Printf("Alert operation failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Internal error")
	}
}
