package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sourceConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "source",
			Name:      "connections_total",
			Help:      "Source-port connection attempts by outcome.",
		},
		[]string{"outcome"},
	)
	sourceDesyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "source",
			Name:      "desyncs_total",
			Help:      "Source streams terminated because framing was lost.",
		},
	)
	framesRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "relay",
			Name:      "frames_relayed_total",
			Help:      "Valid frames broadcast to the destination registry.",
		},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "relay",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded at the validation boundary by reason.",
		},
		[]string{"reason"},
	)
	bytesRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "relay",
			Name:      "bytes_relayed_total",
			Help:      "Wire bytes of valid frames handed to the broadcaster.",
		},
	)
	destinationsCurrent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relayctl",
			Subsystem: "relay",
			Name:      "destinations",
			Help:      "Destinations currently registered.",
		},
	)
	destinationEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "relay",
			Name:      "destination_evictions_total",
			Help:      "Destinations forcibly disconnected by reason.",
		},
		[]string{"reason"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relayctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			sourceConnections,
			sourceDesyncs,
			framesRelayed,
			framesDropped,
			bytesRelayed,
			destinationsCurrent,
			destinationEvictions,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordSourceConnection(outcome string) {
	RegisterMetrics()
	sourceConnections.WithLabelValues(outcome).Inc()
}

func RecordDesync() {
	RegisterMetrics()
	sourceDesyncs.Inc()
}

func RecordFrameRelayed(wireBytes int) {
	RegisterMetrics()
	framesRelayed.Inc()
	bytesRelayed.Add(float64(wireBytes))
}

func RecordFrameDropped(reason string) {
	RegisterMetrics()
	framesDropped.WithLabelValues(reason).Inc()
}

func SetDestinations(n int) {
	RegisterMetrics()
	destinationsCurrent.Set(float64(n))
}

func RecordEviction(reason string) {
	RegisterMetrics()
	destinationEvictions.WithLabelValues(reason).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
