package reqctx

import "context"

// Context key type
type contextKey string

const correlationIDKey contextKey = "correlation_id"
const auditDraftKey contextKey = "audit_draft"
const UserIDKey contextKey = "user_id"

// WithCorrelationID adds the request correlation id to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation id from the context
func CorrelationID(ctx context.Context) string {
	id, ok := ctx.Value(correlationIDKey).(string)
	if !ok {
		return ""
	}
	return id
}

// WithAuditDraft attaches the in-flight audit draft to the context
func WithAuditDraft(ctx context.Context, draft *AuditDraft) context.Context {
	return context.WithValue(ctx, auditDraftKey, draft)
}

// AuditDraftFrom retrieves the in-flight audit draft. The result is nil when
// the request did not pass through the audit interceptor; AuditDraft methods
// are safe to call on a nil draft.
func AuditDraftFrom(ctx context.Context) *AuditDraft {
	draft, _ := ctx.Value(auditDraftKey).(*AuditDraft)
	return draft
}

// SetUserID adds user ID to request context
func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserID retrieves user ID from request context
func GetUserID(ctx context.Context) string {
	if userID := ctx.Value(UserIDKey); userID != nil {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
