package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Quota engine metrics
	QuotaChecksTotal *prometheus.CounterVec
	QuotaCheckErrors prometheus.Counter

	// Capability resolver metrics
	CapabilityResolutions *prometheus.CounterVec
	SnapshotRefreshes     *prometheus.CounterVec

	// Usage ledger metrics
	UsageIncrementsTotal prometheus.Counter
	UsageIncrementErrors prometheus.Counter

	// Adjustment aggregator metrics
	AdjustmentPassesTotal *prometheus.CounterVec
	AdjustmentDeltas      *prometheus.GaugeVec

	// Identity provider metrics
	SessionRevocations *prometheus.CounterVec

	// Document store metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		QuotaChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_checks_total",
				Help: "Total number of quota checks by outcome and reason",
			},
			[]string{"outcome", "reason"},
		),
		QuotaCheckErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "quota_check_errors_total",
				Help: "Total number of quota checks that failed closed on a store error",
			},
		),

		CapabilityResolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capability_resolutions_total",
				Help: "Total number of capability resolutions by source",
			},
			[]string{"source"},
		),
		SnapshotRefreshes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capability_snapshot_refreshes_total",
				Help: "Total number of capability snapshot refreshes by result",
			},
			[]string{"result"},
		),

		UsageIncrementsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "usage_increments_total",
				Help: "Total number of usage ledger increments",
			},
		),
		UsageIncrementErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "usage_increment_errors_total",
				Help: "Total number of swallowed usage increment failures",
			},
		),

		AdjustmentPassesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adjustment_passes_total",
				Help: "Total number of dynamic adjustment passes by result",
			},
			[]string{"result"},
		),
		AdjustmentDeltas: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adjustment_delta",
				Help: "Current dynamic adjustment delta per API, tier and period",
			},
			[]string{"api_id", "tier", "period"},
		),

		SessionRevocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_revocations_total",
				Help: "Total number of session revocations by result",
			},
			[]string{"result"},
		),

		StoreOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_op_duration_seconds",
				Help:    "Document store operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		StoreOpErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_op_errors_total",
				Help: "Total number of document store operation errors",
			},
			[]string{"op"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordQuotaCheck records a quota check outcome
func RecordQuotaCheck(allowed bool, reason string) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	if reason == "" {
		reason = "none"
	}
	Get().QuotaChecksTotal.WithLabelValues(outcome, reason).Inc()
}

// RecordQuotaCheckError records a quota check that failed closed
func RecordQuotaCheckError() {
	Get().QuotaCheckErrors.Inc()
}

// RecordCapabilityResolution records which precedence source resolved a capability
func RecordCapabilityResolution(source string) {
	Get().CapabilityResolutions.WithLabelValues(source).Inc()
}

// RecordSnapshotRefresh records a snapshot refresh attempt
func RecordSnapshotRefresh(result string) {
	Get().SnapshotRefreshes.WithLabelValues(result).Inc()
}

// RecordUsageIncrement records a usage increment attempt
func RecordUsageIncrement(err error) {
	Get().UsageIncrementsTotal.Inc()
	if err != nil {
		Get().UsageIncrementErrors.Inc()
	}
}

// RecordAdjustmentPass records a completed adjustment pass
func RecordAdjustmentPass(result string) {
	Get().AdjustmentPassesTotal.WithLabelValues(result).Inc()
}

// SetAdjustmentDelta exposes the currently applied delta for a tier
func SetAdjustmentDelta(apiID, tier, period string, delta int64) {
	Get().AdjustmentDeltas.WithLabelValues(apiID, tier, period).Set(float64(delta))
}

// RecordSessionRevocation records a session revocation attempt
func RecordSessionRevocation(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Get().SessionRevocations.WithLabelValues(result).Inc()
}

// RecordStoreOp records a document store operation
func RecordStoreOp(op string, duration time.Duration, err error) {
	Get().StoreOpDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		Get().StoreOpErrors.WithLabelValues(op).Inc()
	}
}
