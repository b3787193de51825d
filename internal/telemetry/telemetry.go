// Package telemetry wires the engine's counters and histograms to a private
// prometheus registry the HTTP server exposes on /metrics.
package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Run outcomes as recorded on the runs counter.
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
	OutcomeRejected = "rejected"
)

// Telemetry records pipeline metrics and mirrors notable events to the log.
// A nil *Telemetry is inert, so components carry it unconditionally.
type Telemetry struct {
	logger   *log.Logger
	registry *prometheus.Registry

	runs              *prometheus.CounterVec
	runSeconds        prometheus.Histogram
	stageSeconds      *prometheus.HistogramVec
	decisions         *prometheus.CounterVec
	toolCalls         *prometheus.CounterVec
	generatorFailures *prometheus.CounterVec
}

func New(logger *log.Logger) *Telemetry {
	if logger == nil {
		logger = log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	t := &Telemetry{
		logger:   logger,
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage", Subsystem: "pipeline", Name: "runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		runSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sage", Subsystem: "pipeline", Name: "run_seconds",
			Help:    "Wall-clock duration of full pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sage", Subsystem: "pipeline", Name: "stage_seconds",
			Help:    "Duration of individual pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"stage"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage", Subsystem: "pipeline", Name: "web_decisions_total",
			Help: "Need-web decisions by reason.",
		}, []string{"reason"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage", Subsystem: "tools", Name: "calls_total",
			Help: "Tool lookups by provider and cache result.",
		}, []string{"provider", "cache"}),
		generatorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage", Subsystem: "generator", Name: "failures_total",
			Help: "Generator call failures by pipeline stage.",
		}, []string{"stage"}),
	}
	reg.MustRegister(t.runs, t.runSeconds, t.stageSeconds, t.decisions, t.toolCalls, t.generatorFailures)
	return t
}

// Registry exposes the backing registry for the /metrics handler.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

func (t *Telemetry) CountRun(outcome string, d time.Duration) {
	if t == nil {
		return
	}
	t.runs.WithLabelValues(outcome).Inc()
	t.runSeconds.Observe(d.Seconds())
}

func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (t *Telemetry) CountDecision(reason string) {
	if t == nil {
		return
	}
	t.decisions.WithLabelValues(reason).Inc()
}

func (t *Telemetry) CountToolCall(provider string, cacheHit bool) {
	if t == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	t.toolCalls.WithLabelValues(provider, cache).Inc()
}

func (t *Telemetry) CountGeneratorFailure(stage string) {
	if t == nil {
		return
	}
	t.generatorFailures.WithLabelValues(stage).Inc()
	t.logger.Printf("generator failure in %s stage", stage)
}
