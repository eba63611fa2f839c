// Package metrics exports simulation activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/shark-market/internal/broker"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/report"
)

// Recorder implements engine.Recorder using Prometheus.
type Recorder struct {
	reg *prometheus.Registry

	days      prometheus.Counter
	volume    *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	failures  *prometheus.CounterVec
	runs      *prometheus.CounterVec
	lastPrice prometheus.Gauge
	assets    prometheus.Gauge
	latency   *prometheus.HistogramVec
}

var _ engine.Recorder = (*Recorder)(nil)

// New creates a recorder on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		days: f.NewCounter(prometheus.CounterOpts{
			Name: "shark_days_total",
			Help: "Total number of simulated days after burn-in",
		}),
		volume: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shark_order_volume_total",
				Help: "Total shares submitted to the market, by side",
			},
			[]string{"side"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shark_anomalies_total",
				Help: "Total number of clamped agent state anomalies",
			},
			[]string{"kind"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shark_market_failures_total",
				Help: "Total number of runs ended by a market failure",
			},
			[]string{"status"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shark_runs_total",
				Help: "Total number of completed simulation runs",
			},
			[]string{"status"},
		),
		lastPrice: f.NewGauge(prometheus.GaugeOpts{
			Name: "shark_last_price",
			Help: "Most recent cleared asset price",
		}),
		assets: f.NewGauge(prometheus.GaugeOpts{
			Name: "shark_total_assets_dollars",
			Help: "Population assets at the end of the last simulated day",
		}),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shark_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveTrade records one market clear.
func (r *Recorder) ObserveTrade(t broker.Trade, latency time.Duration) {
	r.volume.WithLabelValues("buy").Add(t.Order.Buy)
	r.volume.WithLabelValues("sell").Add(t.Order.Sell)
	r.lastPrice.Set(t.Price)
	r.latency.WithLabelValues("clear").Observe(latency.Seconds())
}

// ObserveDay records one simulated day.
func (r *Recorder) ObserveDay(rec engine.Record) {
	r.days.Inc()
	r.assets.Set(rec.TotalAssets)
}

// ObserveFailure records a market failure.
func (r *Recorder) ObserveFailure(reason string) {
	r.failures.WithLabelValues(report.StatusCode(reason)).Inc()
}

// ObserveAnomaly records a clamped state anomaly.
func (r *Recorder) ObserveAnomaly(kind string) {
	r.anomalies.WithLabelValues(kind).Inc()
}

// RecordRun records a finished run and its wall time.
func (r *Recorder) RecordRun(status string, elapsed time.Duration) {
	r.runs.WithLabelValues(status).Inc()
	r.latency.WithLabelValues("run").Observe(elapsed.Seconds())
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
