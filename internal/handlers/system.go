package handlers

import (
	"net/http"

	"github.com/netpulse/netpulse/internal/api"
	"github.com/netpulse/netpulse/internal/poller"
	"github.com/netpulse/netpulse/internal/ws"
)

// SystemHandler exposes health, poller observability, and the live event
// stream.
type SystemHandler struct {
	dispatcher *poller.Dispatcher
	hub        *ws.Hub
}

// NewSystemHandler creates a system handler
func NewSystemHandler(d *poller.Dispatcher, hub *ws.Hub) *SystemHandler {
	return &SystemHandler{dispatcher: d, hub: hub}
}

// SetupRoutes mounts health, stats, and event stream routes
func (h *SystemHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/poller/stats", h.handlePollerStats)
	mux.HandleFunc("/api/events/ws", h.hub.HandleWS)
}

func (h *SystemHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SystemHandler) handlePollerStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stats := h.dispatcher.Stats()
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"polls_total":   stats.PollsTotal,
		"polls_success": stats.PollsSuccess,
		"polls_failed":  stats.PollsFailed,
		"in_flight":     h.dispatcher.InFlightCount(),
		"subscribers":   h.hub.ClientCount(),
	})
}
