package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blogem/reqtel/authenticator"
	"github.com/blogem/reqtel/cloudmetrics"
	"github.com/blogem/reqtel/config"
	"github.com/blogem/reqtel/controllers"
	"github.com/blogem/reqtel/metrics"
	"github.com/blogem/reqtel/middleware"
	"github.com/blogem/reqtel/repositories"
	"github.com/blogem/reqtel/services"
	"github.com/blogem/reqtel/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()

	requests := tracker.New(
		tracker.WithRetention(cfg.Tracker.Retention),
		tracker.WithSweepInterval(cfg.Tracker.SweepInterval),
		tracker.WithLogger(logger.Named("tracker")),
		tracker.WithPruneHook(func(res tracker.PruneResult) {
			collector.ObservePruned(res.RemovedTimestamps)
		}),
	)
	failedLogins := tracker.New(
		tracker.WithRetention(cfg.Anomaly.FailureWindow),
		tracker.WithSweepInterval(cfg.Tracker.SweepInterval),
		tracker.WithLogger(logger.Named("failed_logins")),
	)
	collector.TrackSources(requests.Sources)

	st, err := openStore(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer st.Close()

	srvs := services.NewServices(st.repos, services.Dependencies{
		Requests:     requests,
		FailedLogins: failedLogins,
		Cloud:        cloudmetrics.WithFallback(nil, nil, logger),
		Metrics:      collector,
		Logger:       logger,
		Anomaly:      anomalyConfig(cfg.Anomaly),
	})

	var provider authenticator.Provider
	if cfg.Auth.Enabled() {
		provider, err = authenticator.NewOpenIDProvider(ctx, authenticator.OpenIDConfig{
			Domain:       cfg.Auth.Domain,
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			CallbackURL:  cfg.Auth.CallbackURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OpenID provider: %w", err)
		}
	} else {
		logger.Warn("Single sign-on is not configured; admin routes will reject every request")
	}

	ctrl := controllers.NewControllers(srvs, controllers.Options{
		Auth:           provider,
		TrustedProxies: cfg.Server.TrustedProxies,
		Lookback:       cfg.Anomaly.Lookback,
		Logger:         logger,
	})

	var sink repositories.AuditSink
	if cfg.Audit.Enabled {
		sink = st.repos.Sink
	}
	interceptor := middleware.NewAuditInterceptor(sink, requests, logger,
		middleware.WithTrustedProxies(cfg.Server.TrustedProxies),
		middleware.WithActorFunc(middleware.SessionActor),
		middleware.WithMetrics(collector),
		middleware.WithWriteTimeout(cfg.Audit.WriteTimeout),
	)

	router, err := setupRouter(ctrl, routerConfig{
		Interceptor:    interceptor,
		Metrics:        collector,
		AdminSubjects:  cfg.Auth.AdminSubjects,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SecureCookies:  cfg.Server.SecureCookies,
		RequestTimeout: cfg.Server.WriteTimeout,
	})
	if err != nil {
		return err
	}

	requests.Start(ctx)
	failedLogins.Start(ctx)

	var background sync.WaitGroup
	if cfg.Anomaly.Interval > 0 {
		background.Add(1)
		go func() {
			defer background.Done()
			runClassifier(ctx, srvs.Anomaly, cfg.Anomaly.Interval, cfg.Anomaly.Lookback, logger)
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	fmt.Printf("🚀 reqtel starting on port %d\n", cfg.Server.Port)
	fmt.Printf("📂 Health: http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("🗃️  Audit store: %s\n", storeDescription(cfg))

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			background.Wait()
			requests.Stop()
			failedLogins.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	fmt.Println("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if err := interceptor.Drain(shutdownCtx); err != nil {
		logger.Warn("Pending audit writes were dropped", zap.Error(err))
	}

	stop()
	background.Wait()
	requests.Stop()
	failedLogins.Stop()

	logger.Info("Shutdown complete")
	return nil
}

// runClassifier reclassifies the lookback window on every tick until ctx ends
func runClassifier(ctx context.Context, anomaly services.AnomalyService, interval, lookback time.Duration, logger *zap.Logger) {
	logger = logger.Named("classifier")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := anomaly.ClassifyRecent(ctx, time.Now().Add(-lookback))
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("Periodic classification failed", zap.Error(err))
				}
				continue
			}
			logger.Info("Periodic classification completed",
				zap.Int("scanned", result.Scanned),
				zap.Int("updated", result.Updated),
				zap.Int("newly_flagged", result.NewlyFlagged),
				zap.Duration("duration", result.Duration))
		}
	}
}

func anomalyConfig(cfg config.AnomalyConfig) services.AnomalyConfig {
	return services.AnomalyConfig{
		FailedAttemptThreshold: cfg.FailedAttemptThreshold,
		FailureWindow:          cfg.FailureWindow,
		RequestRateThreshold:   cfg.RequestRateThreshold,
		RequestRateWindow:      cfg.RequestRateWindow,
		BatchLimit:             cfg.BatchLimit,
	}
}

func storeDescription(cfg *config.Config) string {
	desc := cfg.Database.Driver
	if cfg.Database.Driver == "sqlite" {
		desc += " (" + cfg.Database.Path + ")"
	}
	if cfg.Redis.Enabled {
		desc += ", mirrored to redis stream " + cfg.Redis.Stream
	}
	if !cfg.Audit.Enabled {
		desc += ", persistence disabled"
	}
	return desc
}
