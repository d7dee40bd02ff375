/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "crx_grabber"

const (
	metricsLabelMode   = "mode"
	metricsLabelResult = "result"
)

// DefaultFetchDurationBuckets is default buckets into which observations
// of upstream fetch durations are counted.
var DefaultFetchDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 9, 10}

// MetricsCollector represents collector of app-level download metrics.
type MetricsCollector struct {
	Downloads      *prometheus.CounterVec
	FetchDurations *prometheus.HistogramVec
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "downloads_total",
			Help:      "Total count of extension download requests by delivery mode and result.",
		},
		[]string{metricsLabelMode, metricsLabelResult},
	)
	fetchDurations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "A histogram of upstream fetch durations.",
			Buckets:   DefaultFetchDurationBuckets,
		},
		[]string{metricsLabelMode},
	)
	return &MetricsCollector{
		Downloads:      downloads,
		FetchDurations: fetchDurations,
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (c *MetricsCollector) MustRegister() {
	prometheus.MustRegister(
		c.Downloads,
		c.FetchDurations,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (c *MetricsCollector) Unregister() {
	prometheus.Unregister(c.FetchDurations)
	prometheus.Unregister(c.Downloads)
}

func (c *MetricsCollector) observeDownload(mode DeliveryMode, result string) {
	c.Downloads.With(prometheus.Labels{
		metricsLabelMode:   string(mode),
		metricsLabelResult: result,
	}).Inc()
}

func (c *MetricsCollector) observeFetchDuration(mode DeliveryMode, elapsed time.Duration) {
	c.FetchDurations.With(prometheus.Labels{
		metricsLabelMode: string(mode),
	}).Observe(elapsed.Seconds())
}
