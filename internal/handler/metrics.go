package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds all Prometheus collectors for the kim Go backend.
var Metrics = struct {
	ReviewsTotal     *prometheus.CounterVec
	ReviewDuration   prometheus.Histogram
	RequestDuration  *prometheus.HistogramVec
	DBPoolActive     prometheus.GaugeFunc
	DBPoolIdle       prometheus.GaugeFunc
	RequestsInFlight prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}{}

// InitMetrics registers all Prometheus metrics. Call once at startup.
func InitMetrics(pool *pgxpool.Pool) {
	Metrics.ReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kim_reviews_total",
			Help: "Total AI reviews attempted, by outcome.",
		},
		[]string{"outcome"},
	)

	Metrics.ReviewDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "kim_review_duration_seconds",
			Help: "Duration of single-video AI reviews (audio, inference, persist).",
			// Reviews routinely take minutes when the limiter is saturated.
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	Metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kim_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	Metrics.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kim_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	Metrics.CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kim_cache_hits_total",
			Help: "Total Redis cache hits.",
		},
	)

	Metrics.CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kim_cache_misses_total",
			Help: "Total Redis cache misses.",
		},
	)

	// DB pool gauges — read live stats from pgxpool
	if pool != nil {
		Metrics.DBPoolActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "kim_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		)

		Metrics.DBPoolIdle = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "kim_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		)

		prometheus.MustRegister(Metrics.DBPoolActive)
		prometheus.MustRegister(Metrics.DBPoolIdle)
	}

	prometheus.MustRegister(
		Metrics.ReviewsTotal,
		Metrics.ReviewDuration,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
		Metrics.CacheHits,
		Metrics.CacheMisses,
	)
}

// MetricsMiddleware records request duration and in-flight count for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next() — Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := sanitizeEndpoint(path)

		Metrics.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
		Metrics.RequestsInFlight.Dec()

		return err
	}
}

// sanitizeEndpoint normalizes paths to avoid cardinality explosion.
func sanitizeEndpoint(path string) string {
	switch {
	case len(path) > 13 && path[:13] == "/api/ratings/":
		return "/api/ratings/:videoId"
	case len(path) > 15 && path[:15] == "/api/ai-review/" && path != "/api/ai-review/bulk":
		return "/api/ai-review/:videoId"
	case len(path) > 16 && path[:16] == "/api/transcript/":
		return "/api/transcript/:videoId"
	default:
		return path
	}
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
