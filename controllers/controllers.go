package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/blogem/reqtel/authenticator"
	"github.com/blogem/reqtel/services"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// writeJSON encodes data with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a {"error": message} body
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// parseLimit reads ?limit=, falling back to def and capping at maxListLimit
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errInvalidParam("limit", raw)
	}
	return min(limit, maxListLimit), nil
}

// parseSince accepts an RFC 3339 timestamp or a lookback duration such as 24h
func parseSince(raw string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return time.Time{}, errInvalidParam("since", raw)
	}
	return now.Add(-d), nil
}

type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " parameter: " + strconv.Quote(e.value)
}

func errInvalidParam(name, value string) error {
	return &paramError{name: name, value: value}
}

// Options configures the controllers
type Options struct {
	Auth           authenticator.Provider
	TrustedProxies int
	Lookback       time.Duration
	Logger         *zap.Logger
}

// Controllers holds all controller instances
type Controllers struct {
	Health     *HealthController
	Auth       *AuthController
	Monitoring *MonitoringController
	Admin      *AdminController
	System     *SystemController
}

// NewControllers creates and initializes all controller instances
func NewControllers(services *services.Services, opts Options) *Controllers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controllers{
		Health:     NewHealthController(),
		Auth:       NewAuthController(opts.Auth, services.LoginAudit, opts.TrustedProxies, logger),
		Monitoring: NewMonitoringController(services),
		Admin:      NewAdminController(services, opts.Lookback, logger),
		System:     NewSystemController(services),
	}
}

// HealthController serves liveness checks
type HealthController struct{}

// NewHealthController creates a new health controller
func NewHealthController() *HealthController {
	return &HealthController{}
}

// Check handles GET /health
func (c *HealthController) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "reqtel"})
}
