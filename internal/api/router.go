// Package api provides the HTTP layer over the monitoring subsystems.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/alerting"
	"vigil/internal/anomaly"
	"vigil/internal/api/handlers"
	"vigil/internal/api/middleware"
	"vigil/internal/api/response"
	"vigil/internal/config"
	"vigil/internal/dashboard"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/performance"
	"vigil/internal/ratelimit"
	"vigil/internal/reports"
	"vigil/internal/sla"
	"vigil/internal/storage"
)

const (
	defaultIngestPerMinute   = 6000
	defaultRequestsPerMinute = 600
	maxRequestBytes          = 10 * 1024 * 1024
)

// Deps carries everything the router serves. The subsystem engines are
// required; Store, Limiter, WebSocket, Registry, and Performance may be nil
// and their routes or middleware are then skipped.
type Deps struct {
	Config      *config.Config
	Logger      logging.Logger
	Collector   *metrics.Collector
	Detector    *anomaly.Detector
	Alerts      *alerting.Manager
	Thresholds  *alerting.ThresholdMonitor
	Correlation *alerting.CorrelationEngine
	Predictor   *alerting.Predictor
	SLA         *sla.Tracker
	Dashboards  *dashboard.Engine
	Reports     *reports.Engine
	Performance *performance.Monitor
	Store       storage.SnapshotStore
	Limiter     ratelimit.Limiter
	WebSocket   http.Handler
	Registry    *prometheus.Registry
	Version     string
}

// Router represents the main API router.
type Router struct {
	deps Deps
	mux  *chi.Mux
}

// NewRouter creates an API router with the standard middleware stack and the
// full route table.
func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = logging.NewNoOpLogger()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	r := &Router{deps: deps, mux: chi.NewRouter()}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// setupMiddleware configures the middleware stack.
func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(r.timeoutMiddleware())
	r.mux.Use(middleware.RequestLogger(r.deps.Logger))
	r.mux.Use(middleware.Instrument(r.deps.Performance))
	r.mux.Use(chimiddleware.RequestSize(maxRequestBytes))
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

// timeoutMiddleware bounds request handling time for everything except the
// WebSocket upgrade, which holds its connection open.
func (r *Router) timeoutMiddleware() func(http.Handler) http.Handler {
	timeout := 30 * time.Second
	if r.deps.Config != nil && r.deps.Config.Server.WriteTimeout > 0 {
		timeout = time.Duration(r.deps.Config.Server.WriteTimeout) * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/ws") {
				next.ServeHTTP(w, req)
				return
			}
			chimiddleware.Timeout(timeout)(next).ServeHTTP(w, req)
		})
	}
}

// ingestLimit returns the rate limit middleware for high-volume write
// endpoints such as metric ingestion and anomaly detection.
func (r *Router) ingestLimit() func(http.Handler) http.Handler {
	perMinute := defaultIngestPerMinute
	if r.deps.Config != nil && r.deps.Config.Redis.IngestPerMinute > 0 {
		perMinute = r.deps.Config.Redis.IngestPerMinute
	}
	return middleware.RateLimit(r.deps.Limiter, "ingest", ratelimit.PerMinute(perMinute), r.deps.Logger)
}

// requestLimit returns the rate limit middleware for everything else.
func (r *Router) requestLimit() func(http.Handler) http.Handler {
	perMinute := defaultRequestsPerMinute
	if r.deps.Config != nil && r.deps.Config.Redis.RequestsPerMinute > 0 {
		perMinute = r.deps.Config.Redis.RequestsPerMinute
	}
	return middleware.RateLimit(r.deps.Limiter, "api", ratelimit.PerMinute(perMinute), r.deps.Logger)
}

// setupRoutes configures API routes.
func (r *Router) setupRoutes() {
	r.mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.WriteNotFound(w, "route", req.URL.Path)
	})

	healthHandler := handlers.NewHealthHandler(r.deps.Store, r.deps.Version)
	r.mux.Get("/health", healthHandler.Check)

	if r.deps.Registry != nil {
		r.mux.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(r.deps.Registry, promhttp.HandlerOpts{}))
	}

	if r.deps.WebSocket != nil {
		r.mux.Handle("/ws", r.deps.WebSocket)
	}

	ingestLimit := r.ingestLimit()
	requestLimit := r.requestLimit()

	metricsHandler := handlers.NewMetricsHandler(r.deps.Collector)
	anomaliesHandler := handlers.NewAnomaliesHandler(r.deps.Detector)
	thresholdsHandler := handlers.NewThresholdsHandler(r.deps.Thresholds)
	alertsHandler := handlers.NewAlertsHandler(r.deps.Alerts, r.deps.Correlation, r.deps.Predictor)
	slaHandler := handlers.NewSLAHandler(r.deps.SLA)
	dashboardsHandler := handlers.NewDashboardsHandler(r.deps.Dashboards)
	reportsHandler := handlers.NewReportsHandler(r.deps.Reports)

	r.mux.Route("/api/v1", func(rtr chi.Router) {
		rtr.Route("/metrics", func(m chi.Router) {
			m.Group(func(ingest chi.Router) {
				ingest.Use(ingestLimit)
				ingest.Post("/", metricsHandler.Ingest)
				ingest.Post("/business", metricsHandler.RecordBusiness)
				ingest.Post("/technical", metricsHandler.RecordTechnical)
				ingest.Post("/cost", metricsHandler.RecordCost)
			})
			m.Group(func(read chi.Router) {
				read.Use(requestLimit)
				read.Get("/statistics", metricsHandler.Statistics)
				read.Get("/aggregates/business", metricsHandler.BusinessAggregate)
				read.Get("/aggregates/technical", metricsHandler.TechnicalAggregate)
				read.Get("/aggregates/cost", metricsHandler.CostAggregate)
				read.Get("/recommendations/cost", metricsHandler.CostRecommendations)
				read.Get("/recommendations/performance", metricsHandler.PerformanceRecommendations)
				read.Get("/{name}/history", metricsHandler.History)
			})
		})

		rtr.Route("/anomalies", func(a chi.Router) {
			a.Group(func(ingest chi.Router) {
				ingest.Use(ingestLimit)
				ingest.Post("/detect", anomaliesHandler.Detect)
			})
			a.Group(func(read chi.Router) {
				read.Use(requestLimit)
				read.Get("/recent", anomaliesHandler.Recent)
				read.Post("/{id}/confirm", anomaliesHandler.Confirm)
			})
		})

		rtr.Route("/thresholds", func(t chi.Router) {
			t.Group(func(ingest chi.Router) {
				ingest.Use(ingestLimit)
				ingest.Post("/check", thresholdsHandler.Check)
			})
			t.Group(func(manage chi.Router) {
				manage.Use(requestLimit)
				manage.Post("/", thresholdsHandler.Register)
				manage.Get("/", thresholdsHandler.List)
			})
		})

		rtr.Route("/alerts", func(a chi.Router) {
			a.Use(requestLimit)
			a.Post("/", alertsHandler.Create)
			a.Get("/", alertsHandler.List)
			a.Get("/statistics", alertsHandler.Statistics)
			a.Get("/groups", alertsHandler.Groups)
			a.Get("/correlation-graph", alertsHandler.CorrelationGraph)
			a.Get("/predictions", alertsHandler.Predictions)
			a.Get("/predictions/{metric}", alertsHandler.PredictMetric)
			a.Get("/{id}", alertsHandler.Get)
			a.Post("/{id}/acknowledge", alertsHandler.Acknowledge)
			a.Post("/{id}/resolve", alertsHandler.Resolve)
			a.Get("/{id}/correlated", alertsHandler.Correlated)
		})

		rtr.Route("/sla", func(s chi.Router) {
			s.Use(requestLimit)
			s.Post("/", slaHandler.Register)
			s.Get("/", slaHandler.List)
			s.Get("/report", slaHandler.Report)
			s.Get("/history", slaHandler.History)
			s.Get("/{service}/compliance", slaHandler.Compliance)
		})

		rtr.Route("/dashboards", func(d chi.Router) {
			d.Use(requestLimit)
			d.Post("/", dashboardsHandler.Create)
			d.Get("/", dashboardsHandler.List)
			d.Get("/snapshot", dashboardsHandler.Snapshot)
			d.Get("/statistics", dashboardsHandler.Statistics)
			d.Get("/sla", dashboardsHandler.SLADashboard)
			d.Get("/cost", dashboardsHandler.CostDashboard)
			d.Get("/{id}", dashboardsHandler.Get)
			d.Put("/{id}", dashboardsHandler.Update)
			d.Delete("/{id}", dashboardsHandler.Delete)
			d.Post("/{id}/widgets", dashboardsHandler.AddWidget)
			d.Put("/{id}/widgets/{widgetID}", dashboardsHandler.UpdateWidget)
			d.Delete("/{id}/widgets/{widgetID}", dashboardsHandler.RemoveWidget)
		})

		rtr.Route("/trends", func(t chi.Router) {
			t.Group(func(ingest chi.Router) {
				ingest.Use(ingestLimit)
				ingest.Post("/", dashboardsHandler.RecordTrend)
			})
			t.Group(func(read chi.Router) {
				read.Use(requestLimit)
				read.Post("/analyze", dashboardsHandler.AnalyzeTrends)
				read.Get("/{name}", dashboardsHandler.Trend)
			})
		})

		rtr.Route("/reports", func(rep chi.Router) {
			rep.Use(requestLimit)
			rep.Post("/definitions", reportsHandler.CreateDefinition)
			rep.Get("/definitions", reportsHandler.ListDefinitions)
			rep.Post("/definitions/{id}/generate", reportsHandler.Generate)
			rep.Post("/definitions/{id}/schedule", reportsHandler.Schedule)
			rep.Delete("/definitions/{id}/schedule", reportsHandler.Unschedule)
			rep.Post("/custom", reportsHandler.GenerateCustom)
			rep.Get("/recent", reportsHandler.Recent)
			rep.Post("/{id}/export", reportsHandler.Export)
			rep.Post("/deliveries", reportsHandler.ScheduleDelivery)
			rep.Get("/deliveries", reportsHandler.ListDeliveries)
			rep.Post("/deliveries/dispatch", reportsHandler.Dispatch)
		})

		if r.deps.Performance != nil {
			perfHandler := handlers.NewPerformanceHandler(r.deps.Performance)
			rtr.Route("/performance", func(p chi.Router) {
				p.Use(requestLimit)
				p.Get("/statistics", perfHandler.AllStats)
				p.Get("/statistics/{operation}", perfHandler.OpStats)
				p.Get("/slow-queries", perfHandler.SlowQueries)
				p.Post("/baseline", perfHandler.SetBaseline)
				p.Get("/regressions", perfHandler.Regressions)
				p.Get("/alerts", perfHandler.Alerts)
			})
		}
	})
}
