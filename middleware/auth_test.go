package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/reqtel/reqctx"
)

func newSessioner(t *testing.T) func(http.Handler) http.Handler {
	t.Helper()
	sessioner, err := session.Sessioner(session.Options{Provider: "memory"})
	require.NoError(t, err)
	return sessioner
}

// newAdminRouter logs the X-Test-User subject into the session before RequireAdmin runs
func newAdminRouter(t *testing.T, admins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(newSessioner(t))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := r.Header.Get("X-Test-User"); user != "" {
				session.GetSession(r).Set(SessionUserKey, user)
			}
			next.ServeHTTP(w, r)
		})
	})
	r.With(RequireAdmin(admins)).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reqctx.GetUserID(r.Context())))
	})
	return r
}

func TestRequireAdmin(t *testing.T) {
	router := newAdminRouter(t, []string{"auth0|admin"})

	tests := []struct {
		name       string
		user       string
		wantStatus int
		wantBody   string
	}{
		{name: "unauthenticated", wantStatus: http.StatusUnauthorized},
		{name: "not an admin", user: "auth0|student", wantStatus: http.StatusForbidden},
		{name: "admin", user: "auth0|admin", wantStatus: http.StatusOK, wantBody: "auth0|admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.user != "" {
				req.Header.Set("X-Test-User", tt.user)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRequireAdmin_AnySubject(t *testing.T) {
	router := newAdminRouter(t, []string{AnySubject})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Test-User", "someone")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin_RecordsActorOnDraft(t *testing.T) {
	sink := newChanSink()
	a, _, _ := newTestInterceptor(t, sink)

	r := chi.NewRouter()
	r.Use(newSessioner(t))
	r.Use(a.Handler)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session.GetSession(r).Set(SessionUserKey, "auth0|student")
			next.ServeHTTP(w, r)
		})
	})
	r.With(RequireAdmin([]string{"auth0|admin"})).Get("/admin", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	record := sink.next(t)
	assert.Equal(t, http.StatusForbidden, record.StatusCode)
	require.NotNil(t, record.UserID)
	assert.Equal(t, "auth0|student", *record.UserID)
}
