package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FeedSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_feed_subscribers",
		Help: "Current number of live conversation feed subscriptions",
	})
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Current number of active websocket connections",
	})
	MessagesAppendedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_appended_total",
		Help: "Total number of messages persisted",
	})
	ConversationsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_conversations_created_total",
		Help: "Total number of conversations created",
	})
	ModerationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_moderation_total",
		Help: "Moderation verdicts by outcome",
	}, []string{"outcome"})
	ModerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_moderation_duration_seconds",
		Help:    "Moderation oracle latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		FeedSubscribers, WsConnections,
		MessagesAppendedTotal, ConversationsCreatedTotal,
		ModerationTotal, ModerationDuration,
		HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware records per-route request counts and latency.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
