package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process counters. All methods are safe on a nil
// receiver so callers do not need to check whether metrics are enabled.
type Metrics struct {
	registry    *prometheus.Registry
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	stockAlerts *prometheus.CounterVec
	reviews     *prometheus.CounterVec
	outboundMsg *prometheus.CounterVec
	inboundMsg  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavy_job_runs_total",
			Help: "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wavy_job_duration_seconds",
			Help:    "Scheduled job run time.",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"job"}),
		stockAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavy_stock_alerts_total",
			Help: "Stock alert candidates by outcome (sent, suppressed, failed).",
		}, []string{"outcome"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavy_reviews_ingested_total",
			Help: "New reviews recorded, split into backfill and alerted.",
		}, []string{"kind"}),
		outboundMsg: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavy_outbound_messages_total",
			Help: "Outbound WhatsApp messages by result.",
		}, []string{"result"}),
		inboundMsg: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavy_inbound_messages_total",
			Help: "Inbound WhatsApp messages by routed command.",
		}, []string{"command"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobRuns, m.jobDuration, m.stockAlerts, m.reviews, m.outboundMsg, m.inboundMsg,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) JobRun(job, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
}

func (m *Metrics) StockAlert(outcome string) {
	if m == nil {
		return
	}
	m.stockAlerts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReviewIngested(kind string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(kind).Inc()
}

func (m *Metrics) InboundCommand(command string) {
	if m == nil {
		return
	}
	m.inboundMsg.WithLabelValues(command).Inc()
}

func (m *Metrics) outbound(result string) {
	if m == nil {
		return
	}
	m.outboundMsg.WithLabelValues(result).Inc()
}
