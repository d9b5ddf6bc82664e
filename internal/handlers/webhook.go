package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/netpulse/netpulse/internal/alerts"
	"github.com/netpulse/netpulse/internal/api"
	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
)

// maxWebhookBody caps webhook payloads at 1 MB
const maxWebhookBody = 1 << 20

// WebhookHandler ingests push-path alerts (webhooks and forwarded traps).
// The addon named in the URL selects the payload adapter; every parsed
// alert flows through the engine exactly like a polled one.
type WebhookHandler struct {
	db       *gorm.DB
	engine   *engine.Engine
	adapters map[string]alerts.WebhookAdapter
	fallback alerts.WebhookAdapter
}

// NewWebhookHandler creates a webhook handler. The fallback adapter parses
// payloads for addons without a source-specific adapter.
func NewWebhookHandler(db *gorm.DB, eng *engine.Engine, fallback alerts.WebhookAdapter) *WebhookHandler {
	return &WebhookHandler{
		db:       db,
		engine:   eng,
		adapters: make(map[string]alerts.WebhookAdapter),
		fallback: fallback,
	}
}

// RegisterAdapter registers a source-specific adapter
func (h *WebhookHandler) RegisterAdapter(adapter alerts.WebhookAdapter) {
	h.adapters[adapter.SourceType()] = adapter
	log.Printf("Registered webhook adapter: %s", adapter.SourceType())
}

// SetupRoutes mounts the webhook routes
func (h *WebhookHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook/alert/", h.HandleWebhook)
}

// HandleWebhook processes POST /webhook/alert/{addon_name}
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	addonName := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/webhook/alert/"), "/")
	if addonName == "" {
		api.RespondError(w, http.StatusBadRequest, "Missing addon name")
		return
	}

	var addon database.AddonRecord
	if err := h.db.Where("name = ?", addonName).First(&addon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Unknown addon")
			return
		}
		log.Printf("Webhook addon lookup failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Addon lookup failed")
		return
	}
	if !addon.Enabled {
		api.RespondError(w, http.StatusForbidden, "Addon disabled")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	adapter, ok := h.adapters[addonName]
	if !ok {
		adapter = h.fallback
	}

	parsed, err := adapter.Parse(body)
	if err != nil {
		log.Printf("Webhook parse failed for addon %s: %v", addonName, err)
		api.RespondError(w, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	// One failed event must not block unrelated events in the same batch,
	// but the caller still learns about the failure.
	processed := 0
	var firstErr error
	for _, p := range parsed {
		if _, err := h.engine.Process(p, addonName); err != nil {
			log.Printf("Failed to process webhook alert %s on %s: %v", p.AlertType, p.DeviceIP, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		processed++
	}

	if processed == 0 && firstErr != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to process alerts")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"received":  len(parsed),
		"processed": processed,
	})
}
