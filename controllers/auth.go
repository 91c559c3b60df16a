package controllers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"gitea.com/go-chi/session"
	"go.uber.org/zap"

	"github.com/blogem/reqtel/authenticator"
	"github.com/blogem/reqtel/middleware"
	"github.com/blogem/reqtel/reqctx"
	"github.com/blogem/reqtel/services"
)

const (
	sessionStateKey    = "state"
	sessionNicknameKey = "user_nickname"
)

// AuthController handles admin single sign-on
type AuthController struct {
	provider       authenticator.Provider
	loginAudit     services.LoginAuditService
	trustedProxies int
	logger         *zap.Logger
}

// NewAuthController creates a new auth controller; a nil provider disables login
func NewAuthController(provider authenticator.Provider, loginAudit services.LoginAuditService, trustedProxies int, logger *zap.Logger) *AuthController {
	return &AuthController{
		provider:       provider,
		loginAudit:     loginAudit,
		trustedProxies: trustedProxies,
		logger:         logger.Named("auth"),
	}
}

// Login handles GET /login
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	if c.provider == nil {
		writeError(w, http.StatusServiceUnavailable, "single sign-on is not configured")
		return
	}

	state, err := generateRandomState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	session.GetSession(r).Set(sessionStateKey, state)
	http.Redirect(w, r, c.provider.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles GET /callback. Every outcome is reported on the request's audit record.
func (c *AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	if c.provider == nil {
		writeError(w, http.StatusServiceUnavailable, "single sign-on is not configured")
		return
	}

	source := middleware.ClientIP(r, c.trustedProxies)
	fail := func(status int, message string, err error) {
		attempts := c.loginAudit.ReportOutcome(r.Context(), source, false)
		c.logger.Info("login failed",
			zap.String("source", source),
			zap.Int("failed_attempts", attempts),
			zap.Error(err),
		)
		writeError(w, status, message)
	}

	sess := session.GetSession(r)
	storedState, _ := sess.Get(sessionStateKey).(string)
	if storedState == "" {
		fail(http.StatusBadRequest, "state not found in session", nil)
		return
	}
	sess.Delete(sessionStateKey)

	if r.URL.Query().Get("state") != storedState {
		fail(http.StatusBadRequest, "invalid state parameter", nil)
		return
	}

	token, err := c.provider.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		fail(http.StatusUnauthorized, "failed to exchange authorization code", err)
		return
	}

	claims, err := c.provider.GetClaims(r.Context(), token)
	if err != nil {
		fail(http.StatusUnauthorized, "failed to verify ID token", err)
		return
	}

	subject := claims.Subject()
	if subject == "" {
		fail(http.StatusUnauthorized, "ID token has no subject", nil)
		return
	}

	c.loginAudit.ReportOutcome(r.Context(), source, true)
	reqctx.AuditDraftFrom(r.Context()).SetUserID(subject)

	sess.Set(middleware.SessionUserKey, subject)
	sess.Set(sessionNicknameKey, claims.DisplayName())

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Status handles GET /api/auth/status
func (c *AuthController) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.SessionActor(r)
	if userID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	nickname, _ := session.GetSession(r).Get(sessionNicknameKey).(string)
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]string{
			"id":       userID,
			"nickname": nickname,
		},
	})
}

// Logout handles GET and POST /logout
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)
	sess.Delete(middleware.SessionUserKey)
	sess.Delete(sessionNicknameKey)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// generateRandomState generates a random state value for CSRF protection
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
