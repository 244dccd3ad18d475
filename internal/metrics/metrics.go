package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	inboxJobs    *prometheus.CounterVec
}

var _ pipeline.Observer = (*Metrics)(nil)

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pantry",
				Name:      "scans_total",
				Help:      "Recorded scans by terminal mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pantry",
				Name:      "scan_rejections_total",
				Help:      "Scans rejected before extraction by error code and tier",
			},
			[]string{"code", "tier"},
		),
		stageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pantry",
				Name:      "stage_duration_seconds",
				Help:      "Extraction stage latency by stage and result",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"stage", "result"},
		),
		inboxJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pantry",
				Name:      "inbox_jobs_total",
				Help:      "Inbox files handled by the watcher queue by outcome",
			},
			[]string{"outcome"},
		),
	}
	registry.MustRegister(
		m.scans,
		m.rejections,
		m.stageLatency,
		m.inboxJobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) StageDone(stage, result string, elapsed time.Duration) {
	m.stageLatency.WithLabelValues(stage, result).Observe(elapsed.Seconds())
}

func (m *Metrics) ScanDone(mode entity.ScanMode, outcome entity.ScanOutcome) {
	m.scans.WithLabelValues(string(mode), string(outcome)).Inc()
}

func (m *Metrics) ScanRejected(code pipeline.Code, tier quota.Tier) {
	t := string(tier)
	if t == "" {
		t = "unknown"
	}
	m.rejections.WithLabelValues(string(code), t).Inc()
}

func (m *Metrics) InboxJobDone(outcome string) {
	m.inboxJobs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
