package middleware

import (
	"encoding/json"
	"net/http"

	"gitea.com/go-chi/session"

	"github.com/blogem/reqtel/reqctx"
)

// SessionUserKey is the session entry holding the authenticated subject
const SessionUserKey = "user_id"

// AnySubject in the admin list admits every authenticated user
const AnySubject = "*"

// RequireAdmin ensures the request comes from an authenticated admin.
// Unauthenticated requests get 401, authenticated non-admins get 403.
func RequireAdmin(adminSubjects []string) func(http.Handler) http.Handler {
	admins := make(map[string]bool, len(adminSubjects))
	for _, s := range adminSubjects {
		admins[s] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := SessionActor(r)
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			// Known even when the request is rejected below
			reqctx.AuditDraftFrom(r.Context()).SetUserID(userID)

			if !admins[AnySubject] && !admins[userID] {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}

			ctx := reqctx.SetUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionActor returns the subject stored in the session, or ""
func SessionActor(r *http.Request) string {
	sess := session.GetSession(r)
	if sess == nil {
		return ""
	}
	userID, _ := sess.Get(SessionUserKey).(string)
	return userID
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
