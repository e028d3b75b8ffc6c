// Package metrics exposes the operational signals of holdings reconciliation
// and of the session as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aurum"

// Metrics implements aurum.Observer, session.Observer and store.Observer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	sourceFailures  *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	staleServed     prometheus.Counter
	reconnects      *prometheus.CounterVec
	storeFallbacks  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
// When reg is nil a private registry is used.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "holdings_cache_hits_total",
			Help: "Holdings requests served from a valid cached snapshot.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "holdings_cache_misses_total",
			Help: "Holdings requests that needed a refresh.",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "holdings_source_failures_total",
			Help: "Failed queries of a holdings source.",
		}, []string{"source"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "holdings_refresh_duration_seconds",
			Help:    "Duration of successful holdings refreshes.",
			Buckets: prometheus.DefBuckets,
		}),
		staleServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "holdings_stale_served_total",
			Help: "Stale snapshots served after a failed refresh.",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "session_reconnects_total",
			Help: "Session reconnect attempts by outcome.",
		}, []string{"outcome"}),
		storeFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_fallbacks_total",
			Help: "Store operations served by the local simulation.",
		}, []string{"op"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.sourceFailures,
		m.refreshDuration,
		m.staleServed,
		m.reconnects,
		m.storeFallbacks,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) Refreshed(d time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(d.Seconds())
}

func (m *Metrics) StaleServed() {
	if m == nil {
		return
	}
	m.staleServed.Inc()
}

func (m *Metrics) Reconnect(outcome string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StoreFallback(op string) {
	if m == nil {
		return
	}
	m.storeFallbacks.WithLabelValues(op).Inc()
}
