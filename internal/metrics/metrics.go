package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private prometheus registry so that several instances can
// coexist in one process (tests build one per case).
type Registry struct {
	reg *prometheus.Registry

	OrdersCreated   prometheus.Counter
	OrderFailures   *prometheus.CounterVec
	OrderTotal      prometheus.Histogram
	Stock           *prometheus.GaugeVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ChangelogOK     prometheus.Counter
	ChangelogFailed prometheus.Counter
	Snapshots       prometheus.Counter

	HTTPRequests  *prometheus.CounterVec
	HTTPLatencyMS *prometheus.HistogramVec

	// offline rebuilds (cmd/report)
	RestoreApplied     prometheus.Counter
	RestoreSkipped     prometheus.Counter
	RestoreDurationSec prometheus.Gauge
	ManifestAgeSec     prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webshop_orders_created_total",
		Help: "Orders persisted by the creation workflow.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webshop_order_failures_total",
		Help: "Rejected order creations by reason.",
	}, []string{"reason"})
	total := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "webshop_order_total_amount",
		Help:    "Total amount of created orders.",
		Buckets: []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
	})
	stock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webshop_product_stock",
		Help: "Current stock per product.",
	}, []string{"product_id"})
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "webshop_product_cache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "webshop_product_cache_misses_total"})
	clogOK := prometheus.NewCounter(prometheus.CounterOpts{Name: "webshop_changelog_appended_total"})
	clogFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "webshop_changelog_failed_total"})
	snaps := prometheus.NewCounter(prometheus.CounterOpts{Name: "webshop_snapshots_written_total"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webshop_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webshop_http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"route"})

	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "webshop_restore_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "webshop_restore_skipped_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webshop_restore_duration_seconds",
		Help: "Duration of the last snapshot restore and changelog replay.",
	})
	age := prometheus.NewGauge(prometheus.GaugeOpts{Name: "webshop_manifest_age_seconds"})

	r.MustRegister(created, failures, total, stock, hits, misses, clogOK, clogFailed, snaps, requests, latency,
		applied, skipped, ttr, age)
	return &Registry{
		reg:             r,
		OrdersCreated:   created,
		OrderFailures:   failures,
		OrderTotal:      total,
		Stock:           stock,
		CacheHits:       hits,
		CacheMisses:     misses,
		ChangelogOK:     clogOK,
		ChangelogFailed: clogFailed,
		Snapshots:       snaps,
		HTTPRequests:    requests,
		HTTPLatencyMS:   latency,

		RestoreApplied:     applied,
		RestoreSkipped:     skipped,
		RestoreDurationSec: ttr,
		ManifestAgeSec:     age,
	}
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
