package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/netpulse/netpulse/internal/database"
)

// APIPoller polls targets that expose a JSON health endpoint. The endpoint
// returns the device's current conditions in the poll result shape:
//
//	{"alerts": [{"alert_type": ..., "severity": ..., ...}],
//	 "clear_types": ["camera_offline", ...]}
type APIPoller struct {
	client *http.Client
}

// NewAPIPoller creates an API poller with a shared HTTP client
func NewAPIPoller() *APIPoller {
	return &APIPoller{
		client: &http.Client{
			// Per-request deadlines come from the task context; this is a
			// hard backstop for connections that ignore it.
			Timeout: 60 * time.Second,
		},
	}
}

// Method returns the addon method this poller serves
func (p *APIPoller) Method() database.AddonMethod {
	return database.MethodAPIPoll
}

type apiPollResponse struct {
	Alerts     []ReportedAlert `json:"alerts"`
	ClearTypes []string        `json:"clear_types"`
}

// Poll fetches the target's health endpoint and decodes reported
// conditions. Any HTTP or decode failure is transient: it reports nothing
// and resolves nothing.
func (p *APIPoller) Poll(ctx context.Context, target *database.Target) PollResult {
	url := configString(target.Config, "url")
	if url == "" {
		scheme := configString(target.Config, "scheme")
		if scheme == "" {
			scheme = "http"
		}
		path := configString(target.Config, "api_path")
		if path == "" {
			path = "/api/health/alerts"
		}
		port := configInt(target.Config, "api_port", 80)
		url = fmt.Sprintf("%s://%s:%d%s", scheme, target.IPAddress, port, path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PollResult{
			Success: false,
			Err:     &ConfigurationError{TargetUUID: target.UUID, Reason: "invalid poll URL: " + url},
		}
	}
	req.Header.Set("Accept", "application/json")
	if token := configString(target.Config, "auth_token"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if user := configString(target.Config, "username"); user != "" {
		req.SetBasicAuth(user, configString(target.Config, "password"))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return PollResult{
			Success:   false,
			Reachable: false,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: err},
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PollResult{
			Success:   false,
			Reachable: true,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)},
		}
	}

	var decoded apiPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return PollResult{
			Success:   false,
			Reachable: true,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: fmt.Errorf("decoding poll response: %w", err)},
		}
	}

	return PollResult{
		Success:    true,
		Reachable:  true,
		Alerts:     decoded.Alerts,
		ClearTypes: decoded.ClearTypes,
	}
}
