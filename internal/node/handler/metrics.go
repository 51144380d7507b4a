package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
)

var (
	blocklogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blocklog_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	blocklogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blocklog_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	blocklogChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blocklog_chain_height",
		Help: "Number of sealed blocks, genesis included.",
	})

	blocklogPendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blocklog_pending_entries",
		Help: "Log entries waiting for the next block.",
	})

	blocklogEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blocklog_entries_total",
		Help: "Total log entries appended.",
	})

	blocklogBlocksSealedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blocklog_blocks_sealed_total",
		Help: "Total blocks sealed, genesis included.",
	})

	blocklogProofAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blocklog_proof_attempts",
		Help:    "Candidates tried per successful proof search.",
		Buckets: prometheus.ExponentialBuckets(16, 4, 10),
	})

	blocklogProofDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blocklog_proof_duration_seconds",
		Help:    "Wall time per successful proof search.",
		Buckets: prometheus.DefBuckets,
	})

	blocklogValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blocklog_validations_total",
		Help: "Total chain validations by result.",
	}, []string{"result"})

	blocklogWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blocklog_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		blocklogRequestsTotal.WithLabelValues(method, path, status).Inc()
		blocklogRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// MetricsObserver returns an engine observer that feeds the chain metrics.
func MetricsObserver() blockchain.Observer {
	return blockchain.ObserverFunc(recordEvent)
}

func recordEvent(ev blockchain.Event) {
	switch ev.Type {
	case blockchain.EventEntryAppended:
		blocklogEntriesTotal.Inc()
		blocklogPendingEntries.Set(float64(ev.Pending))
	case blockchain.EventBlockSealed:
		blocklogBlocksSealedTotal.Inc()
		blocklogChainHeight.Set(float64(ev.Height))
		blocklogPendingEntries.Set(float64(ev.Pending))
	case blockchain.EventProofFound:
		blocklogProofAttempts.Observe(float64(ev.Attempts))
		blocklogProofDuration.Observe(ev.Elapsed.Seconds())
	case blockchain.EventChainValidated:
		recordValidation(ev.Err == nil)
	}
}

// recordValidation records a chain validation result.
func recordValidation(valid bool) {
	if valid {
		blocklogValidationsTotal.WithLabelValues("valid").Inc()
	} else {
		blocklogValidationsTotal.WithLabelValues("invalid").Inc()
	}
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		blocklogWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		blocklogWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
