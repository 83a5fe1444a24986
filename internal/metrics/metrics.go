// Package metrics provides Prometheus instrumentation for the Launchdeck platform.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchdeck",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "launchdeck",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PluginOpsTotal counts plugin manager operations by operation and result.
	PluginOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchdeck",
			Name:      "plugin_ops_total",
			Help:      "Total plugin manager operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	// PluginHookFailuresTotal counts lifecycle hook failures by hook name.
	PluginHookFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchdeck",
			Name:      "plugin_hook_failures_total",
			Help:      "Total plugin lifecycle hook failures by hook.",
		},
		[]string{"plugin", "hook"},
	)

	// QuotaChecksTotal counts quota computations by feature.
	QuotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchdeck",
			Name:      "quota_checks_total",
			Help:      "Total feature quota computations by feature.",
		},
		[]string{"feature"},
	)

	// QuotaExceededTotal counts operations rejected because a quota was hit.
	QuotaExceededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchdeck",
			Name:      "quota_exceeded_total",
			Help:      "Total operations rejected by quota enforcement, by feature.",
		},
		[]string{"feature"},
	)

	// NotifyDeliveriesTotal counts outbound notification posts by result.
	NotifyDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchdeck",
			Name:      "notify_deliveries_total",
			Help:      "Total outbound notification deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "launchdeck",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PluginOpsTotal,
		PluginHookFailuresTotal,
		QuotaChecksTotal,
		QuotaExceededTotal,
		NotifyDeliveriesTotal,
		ActiveWebSocketClients,
	)
}

// Middleware records request counts and latency per route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape handler wrapped for gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
