package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediamote",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total pairing API requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediamote",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Pairing API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mediamote",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Currently open realtime connections.",
		},
	)
	wsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediamote",
			Subsystem: "ws",
			Name:      "events_total",
			Help:      "Inbound realtime events by name and outcome.",
		},
		[]string{"event", "outcome"},
	)
	wsDroppedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mediamote",
			Subsystem: "ws",
			Name:      "dropped_frames_total",
			Help:      "Inbound frames dropped as malformed.",
		},
	)
	wsTerminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediamote",
			Subsystem: "ws",
			Name:      "terminations_total",
			Help:      "Connections terminated by the bridge, by reason.",
		},
		[]string{"reason"},
	)
	pairingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediamote",
			Subsystem: "pairing",
			Name:      "outcomes_total",
			Help:      "Pairing and session operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			wsConnections, wsEvents, wsDroppedFrames, wsTerminations,
			pairingOutcomes,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func ConnOpened() {
	RegisterMetrics()
	wsConnections.Inc()
}

func ConnClosed() {
	RegisterMetrics()
	wsConnections.Dec()
}

func RecordEvent(event, outcome string) {
	RegisterMetrics()
	wsEvents.WithLabelValues(event, outcome).Inc()
}

func RecordDroppedFrame() {
	RegisterMetrics()
	wsDroppedFrames.Inc()
}

func RecordTermination(reason string) {
	RegisterMetrics()
	wsTerminations.WithLabelValues(reason).Inc()
}

func RecordPairing(operation, outcome string) {
	RegisterMetrics()
	pairingOutcomes.WithLabelValues(operation, outcome).Inc()
}
