package monitoring

import (
	"strconv"
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

	// 客户端侧指标
	AnswerSaveCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_answer_saves_total",
			Help: "Background answer save attempts by result",
		},
		[]string{"result"},
	)

	RevealCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_reveals_total",
			Help: "Reveal requests by result",
		},
		[]string{"result"},
	)

	FinalizeRetryCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_finalize_retries_total",
			Help: "Finalize calls retried after a failure",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AnswerSaveCounter)
	prometheus.MustRegister(RevealCounter)
	prometheus.MustRegister(FinalizeRetryCounter)
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
