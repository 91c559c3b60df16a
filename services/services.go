package services

import (
	"go.uber.org/zap"

	"github.com/blogem/reqtel/cloudmetrics"
	"github.com/blogem/reqtel/metrics"
	"github.com/blogem/reqtel/repositories"
	"github.com/blogem/reqtel/tracker"
)

// Dependencies groups what the services need besides the repositories
type Dependencies struct {
	Requests     *tracker.Tracker
	FailedLogins *tracker.Tracker
	Cloud        cloudmetrics.Provider
	Metrics      *metrics.Collector
	Logger       *zap.Logger
	Anomaly      AnomalyConfig
}

// Services holds all service instances
type Services struct {
	Anomaly    AnomalyService
	Monitoring MonitoringService
	LoginAudit LoginAuditService
}

// NewServices creates and initializes all service instances
func NewServices(repos *repositories.Repositories, deps Dependencies) *Services {
	return &Services{
		Anomaly:    NewAnomalyService(repos.Audit, deps.Anomaly, deps.Metrics, deps.Logger),
		Monitoring: NewMonitoringService(deps.Requests, repos.Audit, deps.Cloud),
		LoginAudit: NewLoginAuditService(deps.FailedLogins, deps.Anomaly.FailureWindow),
	}
}
