package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks pipeline orchestration metrics: stage attempts by
// outcome, fallback rules fired, artifact resolution tiers used, and runs
// by final status.
type Collector struct {
	registry *prometheus.Registry

	StageAttempts *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	ArtifactTiers *prometheus.CounterVec
	Runs          *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		StageAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vid2cloud_stage_attempts_total",
			Help: "Stage attempts by stage and classified outcome",
		}, []string{"stage", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vid2cloud_fallbacks_total",
			Help: "Fallback policy rules fired by stage and rule",
		}, []string{"stage", "rule"}),
		ArtifactTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vid2cloud_artifact_resolution_total",
			Help: "Artifact resolutions by stage and tier (pointer, scan, placeholder)",
		}, []string{"stage", "tier"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vid2cloud_runs_total",
			Help: "Pipeline runs by final status",
		}, []string{"status"}),
	}

	c.registry.MustRegister(c.StageAttempts, c.Fallbacks, c.ArtifactTiers, c.Runs)
	return c
}

// Handler returns the HTTP handler tree for metrics exposition
func (c *Collector) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return r
}

// Serve exposes metrics on addr for the lifetime of a run. Errors are
// ignored: exposition is best effort and must never fail the pipeline.
func (c *Collector) Serve(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go srv.ListenAndServe()
	return srv
}
