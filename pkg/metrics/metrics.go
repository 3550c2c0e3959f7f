package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncCycles counts completed poll cycles by result
	// (success|fetch_error|persistence_error|delivery_error).
	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keepsync_sync_cycles_total",
			Help: "Total number of insight poll cycles",
		},
		[]string{"result"},
	)

	// InsightsDelivered counts notifications handed to the device.
	InsightsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepsync_insights_delivered_total",
			Help: "Total number of insights delivered as notifications",
		},
	)

	// DeliveryFailures counts per-insight delivery failures.
	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepsync_delivery_failures_total",
			Help: "Total number of failed notification deliveries",
		},
	)

	// CursorTimestamp exposes the persisted watermark as a unix timestamp.
	CursorTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keepsync_cursor_timestamp_seconds",
			Help: "Unix timestamp of the persisted sync cursor",
		},
	)

	// TapEvents counts observed notification tap events by outcome
	// (navigated|deferred|ignored).
	TapEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keepsync_tap_events_total",
			Help: "Total number of notification tap events",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies on the device API.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keepsync_api_latency_seconds",
			Help:    "Device API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
