package services

import (
	"context"
	"fmt"
	"time"

	"github.com/blogem/reqtel/cloudmetrics"
	"github.com/blogem/reqtel/models"
	"github.com/blogem/reqtel/repositories"
	"github.com/blogem/reqtel/tracker"
)

const recentLoginLimit = 10

// LoadReport combines cloud load data with locally recorded logins
type LoadReport struct {
	Load        []cloudmetrics.Datapoint `json:"load"`
	Logs        []cloudmetrics.LogEvent  `json:"logs"`
	LocalLogins []models.AuditRecord     `json:"localLogins"`
}

// SystemMetrics is the server health view of the cloud provider
type SystemMetrics struct {
	CPUUtilization []cloudmetrics.Datapoint `json:"cpu_utilization"`
	MemoryUsage    string                   `json:"memory_usage"`
	Timestamp      time.Time                `json:"timestamp"`
}

// MonitoringService interface defines the read side used by admin and monitoring endpoints
type MonitoringService interface {
	SourceStatistics(source string, windowMinutes int) models.DerivedStatistics
	CloudStatus(ctx context.Context) (*cloudmetrics.Status, error)
	LoadReport(ctx context.Context) (*LoadReport, error)
	SystemMetrics(ctx context.Context) (*SystemMetrics, error)
	ListLogs(ctx context.Context, filter repositories.AuditFilter) ([]models.AuditRecord, error)
	GetLog(ctx context.Context, correlationID string) (*models.AuditRecord, error)
	LoginActivity(ctx context.Context, limit int) ([]models.AuditRecord, error)
	Summary(ctx context.Context) (*repositories.Summary, error)
}

// monitoringService implements MonitoringService interface
type monitoringService struct {
	tracker   *tracker.Tracker
	auditRepo repositories.AuditRepository
	cloud     cloudmetrics.Provider
	now       func() time.Time
}

// NewMonitoringService creates a new monitoring service
func NewMonitoringService(tr *tracker.Tracker, auditRepo repositories.AuditRepository, cloud cloudmetrics.Provider) MonitoringService {
	if cloud == nil {
		cloud = cloudmetrics.NewFallbackProvider()
	}
	return &monitoringService{
		tracker:   tr,
		auditRepo: auditRepo,
		cloud:     cloud,
		now:       time.Now,
	}
}

// SourceStatistics computes derived statistics from in-memory state only
func (s *monitoringService) SourceStatistics(source string, windowMinutes int) models.DerivedStatistics {
	return s.tracker.StatisticsWithin(source, windowMinutes)
}

// CloudStatus reports the cloud provider connection state
func (s *monitoringService) CloudStatus(ctx context.Context) (*cloudmetrics.Status, error) {
	return s.cloud.Status(ctx)
}

// LoadReport gathers server load, cloud login events and the latest local logins
func (s *monitoringService) LoadReport(ctx context.Context) (*LoadReport, error) {
	load, err := s.cloud.ServerLoad(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch server load: %w", err)
	}

	logs, err := s.cloud.LoginEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login events: %w", err)
	}

	logins, err := s.LoginActivity(ctx, recentLoginLimit)
	if err != nil {
		return nil, err
	}

	return &LoadReport{Load: load, Logs: logs, LocalLogins: logins}, nil
}

// SystemMetrics returns CPU utilization; memory needs custom cloud metrics
func (s *monitoringService) SystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	load, err := s.cloud.ServerLoad(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch server load: %w", err)
	}
	return &SystemMetrics{
		CPUUtilization: load,
		MemoryUsage:    "N/A",
		Timestamp:      s.now().UTC(),
	}, nil
}

// ListLogs returns stored audit records
func (s *monitoringService) ListLogs(ctx context.Context, filter repositories.AuditFilter) ([]models.AuditRecord, error) {
	records, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.AuditRecord{}
	}
	return records, nil
}

// GetLog retrieves one audit record
func (s *monitoringService) GetLog(ctx context.Context, correlationID string) (*models.AuditRecord, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("invalid correlation id: %q", correlationID)
	}
	return s.auditRepo.GetByCorrelationID(ctx, correlationID)
}

// LoginActivity returns the latest records that carry an authentication outcome
func (s *monitoringService) LoginActivity(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	return s.ListLogs(ctx, repositories.AuditFilter{AuthOnly: true, Limit: limit})
}

// Summary returns retained-store counters
func (s *monitoringService) Summary(ctx context.Context) (*repositories.Summary, error) {
	return s.auditRepo.Summary(ctx)
}
