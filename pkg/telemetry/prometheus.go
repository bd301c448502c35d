package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	eventAvailableTickets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_available_tickets",
			Help: "Tickets still available per event, as last observed by the ledger",
		},
		[]string{"event_id"},
	)

	staffScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staff_scans_total",
			Help: "Door scans by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	expirySweeps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_expiry_sweep_duration_seconds",
			Help:    "Duration of pending order expiry sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

// PrometheusHandler serves /metrics
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// PrometheusMiddleware records request count and latency per route template
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// SetEventAvailability publishes the latest known available_tickets of an event
func SetEventAvailability(eventID int64, available int) {
	eventAvailableTickets.WithLabelValues(strconv.FormatInt(eventID, 10)).Set(float64(available))
}

// TrackScan counts a door scan
func TrackScan(direction, outcome string) {
	staffScans.WithLabelValues(direction, outcome).Inc()
}

// ObserveExpirySweep records how long an expiry sweep took
func ObserveExpirySweep(d time.Duration) {
	expirySweeps.Observe(d.Seconds())
}
