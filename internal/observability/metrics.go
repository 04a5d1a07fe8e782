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
			Namespace: "fingerctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fingerctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingerctl",
			Subsystem: "terminal",
			Name:      "exchanges_total",
			Help:      "Request/response exchanges with fingerprint terminals.",
		},
		[]string{"addr", "success"},
	)
	exchangeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fingerctl",
			Subsystem: "terminal",
			Name:      "exchange_response_bytes",
			Help:      "Bytes received per exchange.",
			Buckets:   []float64{0, 12, 64, 256, 512, 1024, 4096},
		},
		[]string{"addr"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fingerctl",
			Subsystem: "terminal",
			Name:      "exchange_duration_seconds",
			Help:      "Exchange duration in seconds, dial to last byte.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"addr"},
	)
	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingerctl",
			Subsystem: "poller",
			Name:      "sessions_total",
			Help:      "Device read sessions by outcome.",
		},
		[]string{"device", "kind", "success"},
	)
	sessionRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fingerctl",
			Subsystem: "poller",
			Name:      "last_session_records",
			Help:      "Records decoded by the latest successful session.",
		},
		[]string{"device"},
	)
	sessionPages = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fingerctl",
			Subsystem: "poller",
			Name:      "last_session_pages",
			Help:      "Pages fetched by the latest successful session.",
		},
		[]string{"device"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			exchanges, exchangeBytes, exchangeDuration,
			sessions, sessionRecords, sessionPages,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordExchange(addr string, received int, duration time.Duration, err error) {
	RegisterMetrics()
	exchanges.WithLabelValues(addr, strconv.FormatBool(err == nil)).Inc()
	if err != nil {
		return
	}
	exchangeBytes.WithLabelValues(addr).Observe(float64(received))
	exchangeDuration.WithLabelValues(addr).Observe(duration.Seconds())
}

func RecordSession(device, kind string, pages, records int, err error) {
	RegisterMetrics()
	sessions.WithLabelValues(device, kind, strconv.FormatBool(err == nil)).Inc()
	if err != nil {
		return
	}
	sessionRecords.WithLabelValues(device).Set(float64(records))
	sessionPages.WithLabelValues(device).Set(float64(pages))
}
