// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"marketdash/internal/market"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketdash"

// Metrics implements the selector and listing recorders and observes
// upstream calls. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	TierServed      *prometheus.CounterVec   // labels: route, tier
	TierFailures    *prometheus.CounterVec   // labels: route, tier, kind
	UpstreamTotal   *prometheus.CounterVec   // labels: provider, op, result
	UpstreamLatency *prometheus.HistogramVec // labels: provider, op
	ListingRefresh  *prometheus.CounterVec   // labels: result
	ListingRows     prometheus.Gauge
	StreamClients   prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec   // labels: method, code
	HTTPDuration    *prometheus.HistogramVec // labels: method
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TierServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_served_total",
			Help:      "Series and quote responses by the tier that served them",
		}, []string{"route", "tier"}),
		TierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_failures_total",
			Help:      "Tier attempts that produced nothing usable",
		}, []string{"route", "tier", "kind"}),
		UpstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Provider requests by outcome",
		}, []string{"provider", "op", "result"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Provider request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "op"}),
		ListingRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_refresh_total",
			Help:      "Listing downloads by outcome",
		}, []string{"result"}),
		ListingRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listing_rows",
			Help:      "Rows in the last successful listing download",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected tick stream clients",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TierServed,
		m.TierFailures,
		m.UpstreamTotal,
		m.UpstreamLatency,
		m.ListingRefresh,
		m.ListingRows,
		m.StreamClients,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Served(route string, t market.Tier) {
	m.TierServed.WithLabelValues(route, string(t)).Inc()
}

func (m *Metrics) Failed(route string, t market.Tier, kind market.ErrorKind) {
	m.TierFailures.WithLabelValues(route, string(t), string(kind)).Inc()
}

func (m *Metrics) ListingRefreshed(ok bool, rows int) {
	if !ok {
		m.ListingRefresh.WithLabelValues("error").Inc()
		return
	}
	m.ListingRefresh.WithLabelValues("ok").Inc()
	m.ListingRows.Set(float64(rows))
}

// Upstream returns an observer for a provider client's SetObserver hook.
func (m *Metrics) Upstream(provider string) func(op string, err error, elapsed time.Duration) {
	return func(op string, err error, elapsed time.Duration) {
		result := "ok"
		if err != nil {
			result = string(market.KindOf(err))
		}
		m.UpstreamTotal.WithLabelValues(provider, op, result).Inc()
		m.UpstreamLatency.WithLabelValues(provider, op).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) ObserveHTTP(method string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
