// Package httpapi serves a small read-only HTTP surface (/healthz,
// /metrics) for the pipeline — the DOMAIN STACK's operational surface.
// Grounded on cryptorun's internal/interfaces/http server.go (a
// *mux.Router wrapped in an *http.Server with explicit
// read/write/idle timeouts) and metrics.go (a MetricsRegistry of named
// prometheus.*Vec collectors registered once at startup).
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoopvalue/engine/internal/domain"
)

// Metrics holds the Prometheus collectors the pipeline reports
// against, named hoopvalue_* to mirror the teacher's cryptorun_*
// prefix convention.
type Metrics struct {
	RunDuration   *prometheus.HistogramVec
	Recommendations *prometheus.CounterVec
	UnitErrors    *prometheus.CounterVec
	LastRunHealth *prometheus.GaugeVec
}

// NewMetrics constructs and registers the metric collectors against
// reg (pass prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer in production).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hoopvalue_run_duration_seconds",
				Help:    "Duration of a full Analyze run in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hoopvalue_recommendations_total",
				Help: "Total recommendations emitted, by tier",
			},
			[]string{"tier"},
		),
		UnitErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hoopvalue_unit_errors_total",
				Help: "Total unit errors, by error code",
			},
			[]string{"code"},
		),
		LastRunHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hoopvalue_last_run_health",
				Help: "HealthSnapshot fields from the most recent run",
			},
			[]string{"field"},
		),
	}

	reg.MustRegister(m.RunDuration, m.Recommendations, m.UnitErrors, m.LastRunHealth)
	return m
}

// ObserveRunOutput records a completed RunOutput's metrics.
func (m *Metrics) ObserveRunOutput(duration time.Duration, output domain.RunOutput) {
	outcome := "ok"
	if len(output.Errors) > 0 {
		outcome = "partial"
	}
	m.RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	for tier, count := range output.Health.TierCounts {
		m.Recommendations.WithLabelValues(string(tier)).Add(float64(count))
	}
	for _, unitErr := range output.Errors {
		m.UnitErrors.WithLabelValues(string(unitErr.Code)).Inc()
	}

	m.LastRunHealth.WithLabelValues("count").Set(float64(output.Health.Count))
	m.LastRunHealth.WithLabelValues("mean_p").Set(output.Health.MeanP)
	m.LastRunHealth.WithLabelValues("mean_ev").Set(output.Health.MeanEV)
	m.LastRunHealth.WithLabelValues("mean_confidence").Set(output.Health.MeanConfidence)
	m.LastRunHealth.WithLabelValues("ev_identity_violations").Set(float64(output.Health.EVIdentityViolations))
	m.LastRunHealth.WithLabelValues("sample_floor_violations").Set(float64(output.Health.SampleFloorViolations))
}

// HealthChecker reports whether the service is ready to serve runs
// (e.g. upstream circuits not all open). Kept minimal and injected so
// httpapi never depends on the orchestrator or adapters packages
// directly.
type HealthChecker func() (healthy bool, detail map[string]string)

// Server is the read-only HTTP surface: /healthz and /metrics.
type Server struct {
	router *mux.Router
	server *http.Server
}

// Config mirrors the teacher's ServerConfig: explicit timeouts, no
// magic defaults baked into http.Server itself.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a local-only listener with conservative
// timeouts, matching the teacher's DefaultServerConfig.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer wires /healthz and /metrics onto a fresh mux.Router.
func NewServer(cfg Config, registry *prometheus.Registry, check HealthChecker) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", healthzHandler(check)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

func healthzHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, detail := true, map[string]string{}
		if check != nil {
			healthy, detail = check()
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"healthy": healthy,
			"detail":  detail,
		})
	}
}

// ListenAndServe starts serving; blocks until the server stops or
// errors.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Router exposes the underlying router for tests (httptest.NewServer
// or httptest.NewRecorder against it directly, avoiding a real
// listener).
func (s *Server) Router() http.Handler {
	return s.router
}
