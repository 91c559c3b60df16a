package controllers

import (
	"net/http"

	"github.com/blogem/reqtel/repositories"
	"github.com/blogem/reqtel/services"
)

const defaultLoginLimit = 100

// SystemController serves the operator data endpoints
type SystemController struct {
	services *services.Services
}

// NewSystemController creates a new system controller
func NewSystemController(services *services.Services) *SystemController {
	return &SystemController{
		services: services,
	}
}

func writeSystemError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
}

// Logins handles GET /api/system/logins?limit=
func (c *SystemController) Logins(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultLoginLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logins, err := c.services.Monitoring.LoginActivity(r.Context(), limit)
	if err != nil {
		writeSystemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  len(logins),
		"data":   logins,
	})
}

// Metrics handles GET /api/system/metrics
func (c *SystemController) Metrics(w http.ResponseWriter, r *http.Request) {
	m, err := c.services.Monitoring.SystemMetrics(r.Context())
	if err != nil {
		writeSystemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"metrics": m,
	})
}

// Raw handles GET /api/system/raw?limit=
func (c *SystemController) Raw(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := c.services.Monitoring.ListLogs(r.Context(), repositories.AuditFilter{Limit: limit})
	if err != nil {
		writeSystemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   logs,
	})
}
