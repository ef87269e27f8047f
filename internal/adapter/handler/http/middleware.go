package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)
)

// metricsMiddleware records per-route counters and latency. Latency
// buckets are tight because the gateway treats a slow response as a
// failed delivery.
func metricsMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		duration := float64(time.Since(start).Milliseconds())

		path := ctx.FullPath()
		if path == "" {
			path = ctx.Request.URL.Path
		}

		httpRequests.WithLabelValues(ctx.Request.Method, path,
			http.StatusText(ctx.Writer.Status())).Inc()
		httpDuration.WithLabelValues(ctx.Request.Method, path).Observe(duration)
	}
}
