// Package metrics exports crew metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datacrew"

// Recorder collects stage, script and LLM metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	stageLatency  *prometheus.HistogramVec
	stageOutcomes *prometheus.CounterVec
	runs          *prometheus.CounterVec
	scripts       *prometheus.CounterVec
	scriptLatency *prometheus.HistogramVec
	llmTokens     *prometheus.CounterVec
	llmCalls      *prometheus.CounterVec
}

// Config configures the Recorder.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}
}

func New(cfg Config) *Recorder {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := &Recorder{registry: registry}

	r.stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crew",
			Name:      "stage_duration_seconds",
			Help:      "Duration of crew stages in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"stage"},
	)
	r.stageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crew",
			Name:      "stage_outcomes_total",
			Help:      "Crew stages by result",
		},
		[]string{"stage", "status"},
	)
	r.runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crew",
			Name:      "runs_total",
			Help:      "Crew runs by process and visualization status",
		},
		[]string{"process", "status"},
	)
	r.scripts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "executions_total",
			Help:      "Script executions by tool and result",
		},
		[]string{"tool", "result"},
	)
	r.scriptLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "execution_seconds",
			Help:      "Script execution time in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"tool"},
	)
	r.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "LLM tokens used, by agent",
		},
		[]string{"agent"},
	)
	r.llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "LLM calls, by agent",
		},
		[]string{"agent"},
	)

	registry.MustRegister(
		r.stageLatency,
		r.stageOutcomes,
		r.runs,
		r.scripts,
		r.scriptLatency,
		r.llmTokens,
		r.llmCalls,
	)
	return r
}

func (r *Recorder) RecordStage(stage string, latency time.Duration, status string) {
	r.stageLatency.WithLabelValues(stage).Observe(latency.Seconds())
	r.stageOutcomes.WithLabelValues(stage, status).Inc()
}

func (r *Recorder) RecordRun(process, status string) {
	r.runs.WithLabelValues(process, status).Inc()
}

// RecordScript counts one script execution; result is "ok" or an error class.
func (r *Recorder) RecordScript(tool string, latency time.Duration, result string) {
	r.scripts.WithLabelValues(tool, result).Inc()
	r.scriptLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

func (r *Recorder) RecordLLM(agent string, tokens int) {
	r.llmCalls.WithLabelValues(agent).Inc()
	if tokens > 0 {
		r.llmTokens.WithLabelValues(agent).Add(float64(tokens))
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
