// Package metrics records dispatch and lease activity: Prometheus series for
// scraping and a small in-memory history for the status endpoint.
package metrics

import "time"

// DispatchRecord is one finished dispatch as kept in the recent history.
type DispatchRecord struct {
	ID        string        `json:"id"`
	Requested int           `json:"requested"`
	Delivered int           `json:"delivered"`
	Status    string        `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// DispatchStats aggregates every recorded dispatch.
type DispatchStats struct {
	Total           int64            `json:"total"`
	Success         int64            `json:"success"`
	Errors          int64            `json:"errors"`
	ImagesDelivered int64            `json:"images_delivered"`
	ErrorsByKind    map[string]int64 `json:"errors_by_kind"`
	AvgDuration     time.Duration    `json:"avg_duration"`
}

// SystemStatus is the health summary of the server.
type SystemStatus struct {
	Health    string    `json:"health"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	LastCheck time.Time `json:"last_check"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	HealthRunning  = "running"
	HealthDegraded = "degraded"
)
