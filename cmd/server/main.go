// server is the vigil monitoring daemon. It ingests metric samples over
// HTTP, evaluates anomalies, thresholds, SLAs, and alert predictions against
// them, and pushes alert lifecycle events to WebSocket subscribers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vigil/internal/alerting"
	"vigil/internal/anomaly"
	"vigil/internal/api"
	"vigil/internal/config"
	"vigil/internal/dashboard"
	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/performance"
	"vigil/internal/ratelimit"
	"vigil/internal/reports"
	"vigil/internal/sla"
	"vigil/internal/storage"
	"vigil/internal/websocket"
)

// version is stamped by the build with -ldflags "-X main.version=...".
var version = "dev"

const (
	readHeaderTimeout   = 10 * time.Second
	idleTimeout         = 120 * time.Second
	shutdownTimeout     = 30 * time.Second
	deliverySweepPeriod = time.Minute
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The logger picks JSON or text output from LOG_JSON at construction
	// time; map the configured format onto it before building the root
	// logger.
	if cfg.Logging.Format == "text" {
		_ = os.Setenv("LOG_JSON", "false")
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level))
	logging.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithComponent("server").Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	log := logger.WithComponent("server")
	log.Info("vigil starting",
		"version", version,
		"storage_driver", cfg.Storage.Driver,
		"rate_limiting", cfg.Redis.Enabled)

	snapshots, err := buildSnapshotStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			log.Warn("error closing snapshot store", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	gen := ids.NewUUIDGenerator()
	systems := buildSubsystems(cfg, gen, registry, logger)

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	systems.alerts.BindEvents(hub)
	systems.detector.BindEvents(hub)

	bindStorage(systems, snapshots)
	loadState(ctx, systems, log)
	provisionRules(cfg, systems, log)

	var limiter ratelimit.Limiter
	if cfg.Redis.Enabled {
		redisLimiter, err := ratelimit.NewRedisLimiter(&cfg.Redis, logger)
		if err != nil {
			log.Warn("redis unreachable, falling back to in-memory rate limiting", "error", err)
			limiter = ratelimit.NewMemoryLimiter()
		} else {
			limiter = redisLimiter
		}
		defer func() {
			if err := limiter.Close(); err != nil {
				log.Warn("error closing rate limiter", "error", err)
			}
		}()
	}

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Logger:      logger,
		Collector:   systems.collector,
		Detector:    systems.detector,
		Alerts:      systems.alerts,
		Thresholds:  systems.thresholds,
		Correlation: systems.correlation,
		Predictor:   systems.predictor,
		SLA:         systems.sla,
		Dashboards:  systems.dashboards,
		Reports:     systems.reports,
		Performance: systems.performance,
		Store:       snapshots,
		Limiter:     limiter,
		WebSocket:   websocket.NewHandler(hub, gen, logger),
		Registry:    registry,
		Version:     version,
	})

	go sweepDeliveries(ctx, systems.reports, log)

	return serveHTTP(ctx, cfg, router.Handler(), systems, log)
}

// subsystems bundles the engines the router serves and the persistence
// lifecycle they share.
type subsystems struct {
	collector   *metrics.Collector
	detector    *anomaly.Detector
	alerts      *alerting.Manager
	thresholds  *alerting.ThresholdMonitor
	correlation *alerting.CorrelationEngine
	predictor   *alerting.Predictor
	sla         *sla.Tracker
	dashboards  *dashboard.Engine
	reports     *reports.Engine
	performance *performance.Monitor
}

func buildSubsystems(cfg *config.Config, gen ids.Generator, registry *prometheus.Registry, logger logging.Logger) *subsystems {
	collector := metrics.NewCollector(&cfg.Monitoring, logger)
	alerts := alerting.NewManager(gen, logger)
	detector := anomaly.NewDetector(&cfg.Monitoring, collector, alerts, gen, logger)
	thresholds := alerting.NewThresholdMonitor(alerts, logger)
	correlation := alerting.NewCorrelationEngine(alerts, logger)
	predictor := alerting.NewPredictor(collector, alerts, gen, logger)
	tracker := sla.NewTracker(&cfg.Monitoring, collector, logger)

	dashboards := dashboard.NewEngine(&cfg.Monitoring, gen, logger)
	dashboards.BindSLASource(tracker)
	dashboards.BindCostSource(collector)

	return &subsystems{
		collector:   collector,
		detector:    detector,
		alerts:      alerts,
		thresholds:  thresholds,
		correlation: correlation,
		predictor:   predictor,
		sla:         tracker,
		dashboards:  dashboards,
		reports:     reports.NewEngine(&cfg.Reports, gen, nil, logger),
		performance: performance.NewMonitor(&cfg.Monitoring, gen, registry, logger),
	}
}

// buildSnapshotStore composes the configured storage adapter with the retry
// and circuit breaker wrappers and runs its schema migration.
func buildSnapshotStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (storage.SnapshotStore, error) {
	base, err := storage.NewStore(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("building snapshot store: %w", err)
	}

	store := storage.NewCircuitBreakerStore(storage.NewRetryableStore(base, nil), nil, logger)

	initCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Storage.TimeoutSeconds)*time.Second)
	defer cancel()
	if err := store.Initialize(initCtx); err != nil {
		return nil, fmt.Errorf("initializing snapshot store: %w", err)
	}
	return store, nil
}

func bindStorage(s *subsystems, store storage.SnapshotStore) {
	s.alerts.BindSnapshotStore(store)
	s.detector.BindSnapshotStore(store)
	s.sla.BindSnapshotStore(store)
}

// loadState restores persisted alert, anomaly, and SLA snapshots. A failed
// load starts the server with empty state rather than not at all.
func loadState(ctx context.Context, s *subsystems, log logging.Logger) {
	if err := s.alerts.LoadFromDatabase(ctx); err != nil {
		log.Warn("could not restore alert history", "error", err)
	}
	if err := s.detector.LoadFromDatabase(ctx); err != nil {
		log.Warn("could not restore anomaly history", "error", err)
	}
	if err := s.sla.LoadFromDatabase(ctx); err != nil {
		log.Warn("could not restore sla compliance history", "error", err)
	}
}

// saveState persists the in-memory histories during shutdown.
func saveState(ctx context.Context, s *subsystems, log logging.Logger) {
	if err := s.alerts.SaveToDatabase(ctx); err != nil {
		log.Warn("could not save alert history", "error", err)
	}
	if err := s.detector.SaveToDatabase(ctx); err != nil {
		log.Warn("could not save anomaly history", "error", err)
	}
	if err := s.sla.SaveToDatabase(ctx); err != nil {
		log.Warn("could not save sla compliance history", "error", err)
	}
}

// provisionRules applies the declarative rules file: thresholds, SLA
// definitions, and dashboard layouts registered before the server accepts
// traffic. Invalid rules are skipped with a warning so one bad entry does
// not block the rest.
func provisionRules(cfg *config.Config, s *subsystems, log logging.Logger) {
	if cfg.Rules.Path == "" {
		return
	}

	rules, err := config.LoadRules(cfg.Rules.Path)
	if err != nil {
		log.Warn("rules provisioning skipped", "path", cfg.Rules.Path, "error", err)
		return
	}

	for _, rule := range rules.Thresholds {
		if err := s.thresholds.RegisterThreshold(rule.ThresholdConfig()); err != nil {
			log.Warn("skipping invalid threshold rule", "metric", rule.Metric, "error", err)
		}
	}
	for _, rule := range rules.SLAs {
		if err := s.sla.RegisterSLA(rule.SLADefinition()); err != nil {
			log.Warn("skipping invalid sla rule", "service", rule.Service, "error", err)
		}
	}
	for _, rule := range rules.Dashboards {
		s.dashboards.CreateDashboard(rule.Layout())
	}

	log.Info("rules provisioned",
		"path", cfg.Rules.Path,
		"thresholds", len(rules.Thresholds),
		"slas", len(rules.SLAs),
		"dashboards", len(rules.Dashboards))
}

// sweepDeliveries dispatches pending report deliveries once a minute. The
// dispatch endpoint triggers the same sweep on demand.
func sweepDeliveries(ctx context.Context, engine *reports.Engine, log logging.Logger) {
	ticker := time.NewTicker(deliverySweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := engine.ExecutePendingDeliveries(ctx); n > 0 {
				log.Info("report deliveries dispatched", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// serveHTTP runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully and persists subsystem state.
func serveHTTP(ctx context.Context, cfg *config.Config, handler http.Handler, systems *subsystems, log logging.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	// The parent context is already cancelled, so shutdown gets a fresh one.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown incomplete", "error", err)
	}

	saveState(shutdownCtx, systems, log)
	return nil
}
