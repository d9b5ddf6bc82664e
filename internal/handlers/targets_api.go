package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/netpulse/netpulse/internal/api"
	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
	"github.com/netpulse/netpulse/internal/poller"
)

// TargetAPIHandler manages monitored targets. Deleting a target
// auto-resolves all of its open alerts; a removed device can no longer be
// in a bad state as far as operators are concerned.
type TargetAPIHandler struct {
	db         *gorm.DB
	engine     *engine.Engine
	dispatcher *poller.Dispatcher
}

// NewTargetAPIHandler creates a target API handler
func NewTargetAPIHandler(db *gorm.DB, eng *engine.Engine, d *poller.Dispatcher) *TargetAPIHandler {
	return &TargetAPIHandler{db: db, engine: eng, dispatcher: d}
}

// SetupRoutes mounts the target API routes
func (h *TargetAPIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/targets", h.handleTargets)
	mux.HandleFunc("/api/targets/", h.handleTarget)
}

// TargetRequest is the create/update payload
type TargetRequest struct {
	Name         string         `json:"name"`
	IPAddress    string         `json:"ip_address"`
	AddonID      string         `json:"addon_id"`
	PollInterval int            `json:"poll_interval"`
	Enabled      *bool          `json:"enabled"`
	Config       database.JSONB `json:"config"`
}

// handleTargets handles GET and POST /api/targets
func (h *TargetAPIHandler) handleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTargets(w, r)
	case http.MethodPost:
		h.createTarget(w, r)
	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *TargetAPIHandler) listTargets(w http.ResponseWriter, r *http.Request) {
	p := api.ParsePagination(r)

	q := h.db.Model(&database.Target{})
	if addonID := r.URL.Query().Get("addon_id"); addonID != "" {
		q = q.Where("addon_id = ?", addonID)
	}

	var targets []database.Target
	if err := q.Order("id ASC").Limit(p.PerPage).Offset(p.Offset()).Find(&targets).Error; err != nil {
		log.Printf("Failed to list targets: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list targets")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"targets":  targets,
		"page":     p.Page,
		"per_page": p.PerPage,
	})
}

func (h *TargetAPIHandler) createTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.IPAddress == "" || req.AddonID == "" {
		api.RespondError(w, http.StatusBadRequest, "ip_address and addon_id are required")
		return
	}

	var addon database.AddonRecord
	if err := h.db.Where("name = ?", req.AddonID).First(&addon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusBadRequest, "Unknown addon: "+req.AddonID)
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Addon lookup failed")
		return
	}

	pollInterval := req.PollInterval
	if pollInterval <= 0 {
		pollInterval = addon.DefaultPollInterval
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	target := database.Target{
		Name:         req.Name,
		IPAddress:    req.IPAddress,
		AddonID:      req.AddonID,
		PollInterval: pollInterval,
		Enabled:      enabled,
		Config:       req.Config,
	}
	if err := h.db.Create(&target).Error; err != nil {
		log.Printf("Failed to create target: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to create target")
		return
	}

	api.RespondJSON(w, http.StatusCreated, target)
}

// handleTarget routes /api/targets/{uuid} and /api/targets/{uuid}/poll
func (h *TargetAPIHandler) handleTarget(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/targets/")
	parts := strings.SplitN(strings.TrimSuffix(rest, "/"), "/", 2)
	targetUUID := parts[0]
	if targetUUID == "" {
		api.RespondError(w, http.StatusBadRequest, "Missing target id")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getTarget(w, targetUUID)
	case action == "" && r.Method == http.MethodPut:
		h.updateTarget(w, r, targetUUID)
	case action == "" && r.Method == http.MethodDelete:
		h.deleteTarget(w, targetUUID)
	case action == "poll" && r.Method == http.MethodPost:
		h.pollTarget(w, r, targetUUID)
	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *TargetAPIHandler) getTarget(w http.ResponseWriter, targetUUID string) {
	var target database.Target
	if err := h.db.Where("uuid = ?", targetUUID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Target not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Target lookup failed")
		return
	}
	api.RespondJSON(w, http.StatusOK, target)
}

func (h *TargetAPIHandler) updateTarget(w http.ResponseWriter, r *http.Request, targetUUID string) {
	var target database.Target
	if err := h.db.Where("uuid = ?", targetUUID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Target not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Target lookup failed")
		return
	}

	var req TargetRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.IPAddress != "" {
		updates["ip_address"] = req.IPAddress
	}
	if req.PollInterval > 0 {
		updates["poll_interval"] = req.PollInterval
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if req.Config != nil {
		updates["config"] = req.Config
	}

	if len(updates) > 0 {
		if err := h.db.Model(&target).Updates(updates).Error; err != nil {
			log.Printf("Failed to update target %s: %v", targetUUID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to update target")
			return
		}
	}
	api.RespondJSON(w, http.StatusOK, target)
}

func (h *TargetAPIHandler) deleteTarget(w http.ResponseWriter, targetUUID string) {
	var target database.Target
	if err := h.db.Where("uuid = ?", targetUUID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Target not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Target lookup failed")
		return
	}

	if err := h.db.Delete(&target).Error; err != nil {
		log.Printf("Failed to delete target %s: %v", targetUUID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to delete target")
		return
	}

	resolved, err := h.engine.ResolveForDevice(target.IPAddress)
	if err != nil {
		// The target is gone; the orphaned alerts can still be resolved
		// manually, so this is a warning rather than a failure.
		log.Printf("Failed to auto-resolve alerts for deleted target %s: %v", target.IPAddress, err)
	} else if resolved > 0 {
		log.Printf("Auto-resolved %d alerts for deleted target %s", resolved, target.IPAddress)
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":         true,
		"alerts_resolved": resolved,
	})
}

// pollTarget handles POST /api/targets/{uuid}/poll, the on-demand poll
func (h *TargetAPIHandler) pollTarget(w http.ResponseWriter, r *http.Request, targetUUID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.dispatcher.PollTarget(ctx, targetUUID)
	if err != nil {
		var confErr *poller.ConfigurationError
		switch {
		case errors.Is(err, engine.ErrNotFound):
			api.RespondError(w, http.StatusNotFound, "Target not found")
		case errors.As(err, &confErr):
			api.RespondErrorWithCode(w, http.StatusConflict, "not_pollable", confErr.Error())
		default:
			log.Printf("On-demand poll of %s failed: %v", targetUUID, err)
			api.RespondError(w, http.StatusInternalServerError, "Poll failed")
		}
		return
	}

	resp := map[string]interface{}{
		"success":     result.Success,
		"reachable":   result.Reachable,
		"alerts":      len(result.Alerts),
		"clear_types": result.ClearTypes,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	api.RespondJSON(w, http.StatusOK, resp)
}
