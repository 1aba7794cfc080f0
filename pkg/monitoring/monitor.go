package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AttemptsStarted 按结果区分：created / resumed
	AttemptsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Admitted attempt starts",
		},
		[]string{"outcome"},
	)

	AttemptsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_rejected_total",
			Help: "Rejected attempt starts and submissions by reason",
		},
		[]string{"operation", "reason"},
	)

	AttemptsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_attempts_completed_total",
			Help: "Attempts transitioned to completed",
		},
	)

	AttemptScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_attempt_score_ratio",
			Help:    "Score of completed attempts relative to the quiz total marks",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	StaleInProgressAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_stale_in_progress_attempts",
			Help: "In-progress attempts whose quiz window already closed",
		},
	)

	CounterIncrementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_counter_increment_failures_total",
			Help: "Best-effort quiz counter increments that failed",
		},
		[]string{"counter"},
	)

	registerOnce sync.Once
)

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptsStarted,
			AttemptsRejected,
			AttemptsCompleted,
			AttemptScore,
			StaleInProgressAttempts,
			CounterIncrementFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
