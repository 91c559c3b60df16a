package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blogem/reqtel/repositories"
	"github.com/blogem/reqtel/reqctx"
	"github.com/blogem/reqtel/services"
)

// AdminController serves the audit review endpoints
type AdminController struct {
	services *services.Services
	lookback time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdminController creates a new admin controller
func NewAdminController(services *services.Services, lookback time.Duration, logger *zap.Logger) *AdminController {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &AdminController{
		services: services,
		lookback: lookback,
		logger:   logger.Named("admin"),
		now:      time.Now,
	}
}

// Logs handles GET /api/admin/logs?limit=&offset=&flagged_only=&source=&since=
func (c *AdminController) Logs(w http.ResponseWriter, r *http.Request) {
	filter, err := c.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := c.services.Monitoring.ListLogs(r.Context(), filter)
	if err != nil {
		c.logger.Error("failed to fetch logs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// Log handles GET /api/admin/logs/{id}
func (c *AdminController) Log(w http.ResponseWriter, r *http.Request) {
	record, err := c.services.Monitoring.GetLog(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "log not found")
		return
	}
	if err != nil {
		c.logger.Error("failed to fetch log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch log")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Summary handles GET /api/admin/summary
func (c *AdminController) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.services.Monitoring.Summary(r.Context())
	if err != nil {
		c.logger.Error("failed to fetch summary", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Classify handles POST /api/admin/classify?since=
func (c *AdminController) Classify(w http.ResponseWriter, r *http.Request) {
	since := c.now().Add(-c.lookback)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := parseSince(raw, c.now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		since = parsed
	}

	c.logger.Info("Manual classification requested",
		zap.String("admin", reqctx.GetUserID(r.Context())),
		zap.Time("since", since))

	result, err := c.services.Anomaly.ClassifyRecent(r.Context(), since)
	if err != nil {
		c.logger.Error("classification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *AdminController) parseFilter(r *http.Request) (repositories.AuditFilter, error) {
	q := r.URL.Query()

	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		return repositories.AuditFilter{}, err
	}
	filter := repositories.AuditFilter{
		Limit:       limit,
		Source:      q.Get("source"),
		FlaggedOnly: q.Get("flagged_only") == "true",
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return repositories.AuditFilter{}, errInvalidParam("offset", raw)
		}
		filter.Offset = offset
	}

	if raw := q.Get("since"); raw != "" {
		since, err := parseSince(raw, c.now())
		if err != nil {
			return repositories.AuditFilter{}, err
		}
		filter.Since = &since
	}

	return filter, nil
}
