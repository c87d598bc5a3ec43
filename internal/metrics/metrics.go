// Package metrics defines the backend's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopping_assistant"

var (
	// runsTotal counts finished runs.
	// Labels: kind (grocery, tech, travel, finance), outcome (completed, stopped)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "runs_total",
		Help:      "Total assistant runs by query kind and outcome",
	}, []string{"kind", "outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "run_duration_seconds",
		Help:      "Wall time of assistant runs",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60},
	}, []string{"kind"})

	runConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "run_conflicts_total",
		Help:      "Run requests rejected because a run was in progress",
	})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Connected push-channel clients",
	})

	// framesSent counts frames written to clients.
	// Labels: type (event type)
	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_sent_total",
		Help:      "Push frames delivered to clients by event type",
	}, []string{"type"})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_dropped_total",
		Help:      "Push frames dropped because a client queue was full",
	})

	checkouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "checkouts_total",
		Help:      "Orders created through checkout",
	})
)

// RunFinished records a run outcome and its duration.
func RunFinished(kind, outcome string, elapsed time.Duration) {
	runsTotal.WithLabelValues(kind, outcome).Inc()
	runDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RunConflict records a rejected concurrent run request.
func RunConflict() {
	runConflicts.Inc()
}

// ClientConnected increments the connected client gauge.
func ClientConnected() {
	streamClients.Inc()
}

// ClientDisconnected decrements the connected client gauge.
func ClientDisconnected() {
	streamClients.Dec()
}

// FrameSent records one delivered frame.
func FrameSent(eventType string) {
	framesSent.WithLabelValues(eventType).Inc()
}

// FrameDropped records one frame dropped for a slow client.
func FrameDropped() {
	framesDropped.Inc()
}

// Checkout records a created order.
func Checkout() {
	checkouts.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
