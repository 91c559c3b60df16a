package models

// DerivedStatistics is computed on demand from the frequency tracker and never persisted
type DerivedStatistics struct {
	Source            string `json:"source"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	RequestsPerHour   int    `json:"requests_per_hour"`
	TimeSinceLastMs   *int64 `json:"time_since_last_request_ms"` // nil with fewer than two observations
	TotalTracked      int    `json:"total_tracked_requests"`
	WindowMinutes     *int   `json:"window_minutes,omitempty"`
	RequestsInWindow  *int   `json:"requests_in_window,omitempty"`
}
