package models

import "time"

// AuditRecord represents one completed request/response cycle
type AuditRecord struct {
	ID             int64     `json:"id,omitempty" db:"id"`
	CorrelationID  string    `json:"request_id" db:"request_id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	SourceAddress  string    `json:"ip_address" db:"ip_address"`
	Endpoint       string    `json:"endpoint" db:"endpoint"`
	Method         string    `json:"http_method" db:"http_method"`
	UserID         *string   `json:"user_id" db:"user_id"`
	UserAgent      *string   `json:"user_agent" db:"user_agent"`
	Referer        *string   `json:"referer" db:"referer"`
	StatusCode     int       `json:"response_status" db:"response_status"`
	LatencyMs      int64     `json:"response_time_ms" db:"response_time_ms"`
	AuthSuccess    *bool     `json:"auth_success" db:"auth_success"`
	FailedAttempts *int      `json:"failed_attempts_count" db:"failed_attempts_count"`

	AnomalyFlags // Embedded review flags, set by the classifier only
}

// IsAuthEvent reports whether the record carries an authentication outcome
func (r *AuditRecord) IsAuthEvent() bool {
	return r.AuthSuccess != nil
}

// IsFailedAuth reports whether the record is a failed authentication
func (r *AuditRecord) IsFailedAuth() bool {
	return r.AuthSuccess != nil && !*r.AuthSuccess
}

// Actor returns the acting user identifier or an empty string
func (r *AuditRecord) Actor() string {
	if r.UserID == nil {
		return ""
	}
	return *r.UserID
}

// StringPtr returns nil for empty strings so optional columns are stored as NULL
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
