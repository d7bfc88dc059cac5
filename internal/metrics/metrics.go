// Package metrics holds the process-wide prometheus collectors. They are
// registered on the default registry and served from GET /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamchat_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "teamchat_ws_connections",
		Help: "Current number of open websocket connections",
	})
	RealtimeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_realtime_events_total",
		Help: "Events published to conversation rooms, by type",
	}, []string{"type"})
	MessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_messages_sent_total",
		Help: "Messages persisted, by conversation kind",
	}, []string{"kind"})
	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_rate_limited_total",
		Help: "Mutations rejected by the per-user quota, by action",
	}, []string{"action"})
	RateLimiterErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "teamchat_rate_limiter_errors_total",
		Help: "Quota checks that failed open because the backend errored",
	})
	LinkPreviewFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_link_preview_fetches_total",
		Help: "Link preview lookups, by result (hit, resolved, failed)",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WSConnections,
		RealtimeEventsTotal,
		MessagesSentTotal,
		RateLimitedTotal,
		RateLimiterErrorsTotal,
		LinkPreviewFetchesTotal,
	)
}

// GinMiddleware records request counts and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HTTPRequestsTotal.With(labels).Inc()
		HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
