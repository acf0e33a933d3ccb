// Package metrics exposes Prometheus instrumentation for the optimizer
// pipeline and the reference-data refresher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	SitesLoaded prometheus.Gauge

	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsPartial   prometheus.Counter

	EntriesEmitted    prometheus.Counter
	FallbackEntries   prometheus.Counter
	WaypointsSkipped  prometheus.Counter
	DeparturesFetched prometheus.Counter

	FetchErrors          *prometheus.CounterVec // endpoint label
	DroppedReferenceRows *prometheus.CounterVec // kind label: site|line

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RunDuration     prometheus.Histogram
	RefreshDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SitesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slroute_sites_loaded",
			Help: "Number of transit sites currently cached.",
		}),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_runs_started_total",
			Help: "Total optimization runs started.",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_runs_completed_total",
			Help: "Optimization runs that ran to completion; disjoint from partial runs.",
		}),
		RunsPartial: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_runs_partial_total",
			Help: "Total runs cancelled mid-flight returning a partial result.",
		}),
		EntriesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_route_entries_total",
			Help: "Total route entries emitted.",
		}),
		FallbackEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_fallback_entries_total",
			Help: "Total direct-travel fallback entries emitted.",
		}),
		WaypointsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_waypoints_skipped_total",
			Help: "Sampled waypoints skipped for missing coordinates.",
		}),
		DeparturesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_departures_fetched_total",
			Help: "Total departures returned by the upstream API.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slroute_fetch_errors_total",
			Help: "Upstream API call failures.",
		}, []string{"endpoint"}),
		DroppedReferenceRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slroute_dropped_reference_rows_total",
			Help: "Reference rows dropped during normalization.",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_cache_hits_total",
			Help: "Departure cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slroute_cache_misses_total",
			Help: "Departure cache misses.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slroute_run_duration_seconds",
			Help:    "Duration of optimization runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slroute_refresh_duration_seconds",
			Help:    "Duration of reference data refresh cycles.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(
		c.SitesLoaded,
		c.RunsStarted, c.RunsCompleted, c.RunsPartial,
		c.EntriesEmitted, c.FallbackEntries, c.WaypointsSkipped, c.DeparturesFetched,
		c.FetchErrors, c.DroppedReferenceRows,
		c.CacheHits, c.CacheMisses,
		c.RunDuration, c.RefreshDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
