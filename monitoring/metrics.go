package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "route"},
	)

	IngestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levels_ingest_runs_total",
			Help: "Submission pipeline runs by action kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	LikeToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levels_like_toggles_total",
			Help: "Like toggles by resulting state",
		},
		[]string{"result"},
	)

	CounterIncrements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levels_counter_increments_total",
			Help: "Attempt and clear increments",
		},
		[]string{"counter"},
	)

	DocStoreConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "levels_docstore_version_conflicts_total",
			Help: "Optimistic write conflicts on the document store",
		},
	)

	ReconciledLevels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levels_reconciled_total",
			Help: "Levels upserted or pruned by the reconcile worker",
		},
		[]string{"op"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			IngestRuns,
			LikeToggles,
			CounterIncrements,
			DocStoreConflicts,
			ReconciledLevels,
		)
	})
}

func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		RequestCounter.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
