// Package metrics exposes pipeline counters in Prometheus format. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patgest"

type Metrics struct {
	registry *prometheus.Registry

	documents    *prometheus.CounterVec
	chunks       *prometheus.CounterVec
	records      *prometheus.CounterVec
	modelCalls   *prometheus.CounterVec
	modelLatency prometheus.Histogram
	queueDepth   prometheus.Gauge
	jobs         *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	m := &Metrics{
		registry: reg,
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Parsed documents by outcome (retained, dropped).",
		}, []string{"outcome"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks produced by outcome (evaluated, skipped).",
		}, []string{"outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Measurement records by stage (raw, valid).",
		}, []string{"stage"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Extraction model calls by outcome (ok, unparsed, error).",
		}, []string{"outcome"}),
		modelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Extraction model call latency.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished ingest jobs by final status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.documents, m.chunks, m.records, m.modelCalls, m.modelLatency, m.queueDepth, m.jobs)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Documents(retained, dropped int) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues("retained").Add(float64(retained))
	m.documents.WithLabelValues("dropped").Add(float64(dropped))
}

func (m *Metrics) Chunk(evaluated bool) {
	if m == nil {
		return
	}
	outcome := "skipped"
	if evaluated {
		outcome = "evaluated"
	}
	m.chunks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Records(raw, valid int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues("raw").Add(float64(raw))
	m.records.WithLabelValues("valid").Add(float64(valid))
}

// ModelCall records one extraction call; outcome is ok, unparsed or error.
func (m *Metrics) ModelCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(outcome).Inc()
	m.modelLatency.Observe(d.Seconds())
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}
