package services

import (
	"context"
	"time"

	"github.com/blogem/reqtel/reqctx"
	"github.com/blogem/reqtel/tracker"
)

// LoginAuditService interface defines how login handlers report their outcome
type LoginAuditService interface {
	ReportOutcome(ctx context.Context, source string, success bool) int
	FailedAttempts(source string) int
}

// loginAuditService implements LoginAuditService interface
type loginAuditService struct {
	failures *tracker.Tracker
	window   time.Duration
}

// NewLoginAuditService creates a login audit service. failures is a tracker
// dedicated to failed logins. A window that is unset or longer than its
// retention is capped to the retention, since older failures are pruned.
func NewLoginAuditService(failures *tracker.Tracker, window time.Duration) LoginAuditService {
	if window <= 0 || window > failures.Retention() {
		window = failures.Retention()
	}
	return &loginAuditService{failures: failures, window: window}
}

// ReportOutcome sets the authentication outcome on the in-flight audit record
// and returns the failed-attempt count stored with it. A success resets the
// count for the source.
func (s *loginAuditService) ReportOutcome(ctx context.Context, source string, success bool) int {
	attempts := 0
	if success {
		s.failures.Forget(source)
	} else {
		s.failures.Record(source)
		attempts = s.failures.CountWithinWindow(source, s.window)
	}

	reqctx.AuditDraftFrom(ctx).SetAuthOutcome(success, attempts)
	return attempts
}

// FailedAttempts returns recent failed logins for source without recording one
func (s *loginAuditService) FailedAttempts(source string) int {
	return s.failures.CountWithinWindow(source, s.window)
}
