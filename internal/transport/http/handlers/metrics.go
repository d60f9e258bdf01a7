package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anelcanto/recall/internal/container"
)

var (
	memoryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_operations_total",
			Help: "Total number of memory store operations",
		},
		[]string{"operation", "status"},
	)

	memoryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_operation_duration_seconds",
			Help:    "Duration of memory store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	upsertOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_upsert_outcomes_total",
			Help: "Total upserts by id strategy (random vs deduped)",
		},
		[]string{"id_strategy"},
	)

	embeddingsPerformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_embeddings_performed_total",
			Help: "Total number of embedding calls made to the embedding endpoint",
		},
	)

	searchResultsCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_search_results_count",
			Help:    "Number of results returned per search call",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
	)
)

// MetricsHandler serves Prometheus metrics.
type MetricsHandler struct {
	container *container.Container
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(c *container.Container) *MetricsHandler {
	return &MetricsHandler{container: c}
}

// Handle serves Prometheus metrics.
func (h *MetricsHandler) Handle(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}

// trackOperation records a memory-store operation's outcome and duration.
func trackOperation(start time.Time, operation, status string) {
	memoryOperationsTotal.WithLabelValues(operation, status).Inc()
	memoryOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func trackUpsertOutcome(idStrategy string) {
	upsertOutcomesTotal.WithLabelValues(idStrategy).Inc()
}

func trackEmbeddingCall() {
	embeddingsPerformedTotal.Inc()
}

func trackSearchResults(count int) {
	searchResultsCount.Observe(float64(count))
}
