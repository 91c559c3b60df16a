package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/reqtel/models"
	"github.com/blogem/reqtel/services"
)

// sourceStatsResponse adds recent failed logins to the request statistics
type sourceStatsResponse struct {
	models.DerivedStatistics
	FailedLogins int `json:"failed_logins"`
}

// MonitoringController serves live traffic statistics and cloud metrics
type MonitoringController struct {
	services *services.Services
}

// NewMonitoringController creates a new monitoring controller
func NewMonitoringController(services *services.Services) *MonitoringController {
	return &MonitoringController{
		services: services,
	}
}

// SourceStats handles GET /api/monitoring/stats/{source}?window=N
func (c *MonitoringController) SourceStats(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errInvalidParam("window", raw).Error())
			return
		}
		window = n
	}

	writeJSON(w, http.StatusOK, sourceStatsResponse{
		DerivedStatistics: c.services.Monitoring.SourceStatistics(source, window),
		FailedLogins:      c.services.LoginAudit.FailedAttempts(source),
	})
}

// Status handles GET /api/monitoring/status
func (c *MonitoringController) Status(w http.ResponseWriter, r *http.Request) {
	status, err := c.services.Monitoring.CloudStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch cloud status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Load handles GET /api/monitoring/load
func (c *MonitoringController) Load(w http.ResponseWriter, r *http.Request) {
	report, err := c.services.Monitoring.LoadReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch monitoring stats")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
