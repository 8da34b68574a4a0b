package memrag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok" or "degraded"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// Healthy reports whether every component check passed.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

// Health fetches the server health report. A degraded server answers 503
// with a report body; that is returned without an error.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("memrag: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("memrag: GET /health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("memrag: decode health: %w", err)
	}
	return hs, nil
}
