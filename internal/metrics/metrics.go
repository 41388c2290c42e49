package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	// Request metrics
	requestsTotal   *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Run state
	progressDone  prometheus.Gauge
	progressTotal prometheus.Gauge
	activeWorkers prometheus.Gauge
	proxiesLoaded prometheus.Gauge

	// API metrics
	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
}

// NewCollector registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of benchmark requests by outcome key",
			},
			[]string{"outcome"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Total number of failed benchmark requests by reason",
			},
			[]string{"reason"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Benchmark request duration in seconds, body transfer included",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		progressDone: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "progress_done",
				Help:      "Requests completed so far in the current run",
			},
		),
		progressTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "progress_total",
				Help:      "Requests planned for the current run",
			},
		),
		activeWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workers",
				Help:      "Workers still running",
			},
		),
		proxiesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "proxies_loaded",
				Help:      "Proxies available to the current run",
			},
		),
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of status API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		apiDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Status API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

func (c *Collector) RecordRequest(outcome string, seconds float64) {
	c.requestsTotal.WithLabelValues(outcome).Inc()
	c.requestDuration.WithLabelValues(outcome).Observe(seconds)
}

func (c *Collector) RecordFailure(reason string) {
	c.failuresTotal.WithLabelValues(reason).Inc()
}

// SetProgress matches progress.Observer.
func (c *Collector) SetProgress(done, total int64) {
	c.progressDone.Set(float64(done))
	c.progressTotal.Set(float64(total))
}

func (c *Collector) WorkerStarted() {
	c.activeWorkers.Inc()
}

func (c *Collector) WorkerFinished() {
	c.activeWorkers.Dec()
}

func (c *Collector) SetProxiesLoaded(count int) {
	c.proxiesLoaded.Set(float64(count))
}

func (c *Collector) RecordAPIRequest(method, endpoint, status string) {
	c.apiRequests.WithLabelValues(method, endpoint, status).Inc()
}

func (c *Collector) RecordAPIDuration(method, endpoint string, seconds float64) {
	c.apiDuration.WithLabelValues(method, endpoint).Observe(seconds)
}
