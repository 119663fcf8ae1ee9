package models

import "time"

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// Health is the result of probing a connection.
type Health struct {
	ConnectionID string    `json:"connectionId"`
	Status       string    `json:"status"`
	LatencyMs    int64     `json:"latencyMs"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// IsHealthy reports whether the probe succeeded.
func (h *Health) IsHealthy() bool {
	return h != nil && h.Status == HealthStatusHealthy
}
