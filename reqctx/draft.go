package reqctx

import (
	"sync"

	"github.com/blogem/reqtel/models"
)

// AuditDraft is the mutable audit record of an in-flight request. Handlers
// update it through its methods; the interceptor seals it exactly once when
// the response completes.
type AuditDraft struct {
	mu     sync.Mutex
	record models.AuditRecord
	sealed bool
}

// NewAuditDraft wraps a partially populated record
func NewAuditDraft(record models.AuditRecord) *AuditDraft {
	return &AuditDraft{record: record}
}

// SetAuthOutcome records the authentication result of the request. Every
// login path reports through this one call.
func (d *AuditDraft) SetAuthOutcome(success bool, failedAttempts int) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return
	}
	d.record.AuthSuccess = &success
	d.record.FailedAttempts = &failedAttempts
}

// SetUserID records the acting user
func (d *AuditDraft) SetUserID(userID string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return
	}
	d.record.UserID = models.StringPtr(userID)
}

// HasUser reports whether an acting user has been set
func (d *AuditDraft) HasUser() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record.UserID != nil
}

// Snapshot returns a copy of the current draft
func (d *AuditDraft) Snapshot() models.AuditRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record
}

// Seal finalizes the draft with the response outcome. Only the first call
// returns ok=true; later calls return the zero record.
func (d *AuditDraft) Seal(statusCode int, latencyMs int64) (models.AuditRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return models.AuditRecord{}, false
	}
	d.sealed = true
	if latencyMs < 0 {
		latencyMs = 0
	}
	d.record.StatusCode = statusCode
	d.record.LatencyMs = latencyMs
	return d.record, true
}
