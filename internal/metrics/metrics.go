package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the attribution service.
type Metrics struct {
	// Ingestion metrics
	EventsSynced        *prometheus.CounterVec
	TouchpointsRecorded *prometheus.CounterVec
	TouchpointsDeduped  *prometheus.CounterVec

	// Attribution metrics
	AttributionsComputed *prometheus.CounterVec
	AttributionsEmpty    prometheus.Counter
	AttributionLatency   *prometheus.HistogramVec

	// Aggregation metrics
	ReportsGenerated  *prometheus.CounterVec
	AdapterRejections *prometheus.CounterVec

	// Intelligence metrics
	PropensityScores *prometheus.CounterVec
	LTVEstimations   *prometheus.CounterVec
	AnomalyAlerts    *prometheus.CounterVec
	MMMCalculations  *prometheus.CounterVec

	// Persistence metrics
	PersistFailures *prometheus.CounterVec

	// Geo enrichment
	GeoLookupLatency *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		EventsSynced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_synced_total",
				Help:      "Journey events processed by the attribution bridge",
			},
			[]string{"type"},
		),
		TouchpointsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "touchpoints_recorded_total",
				Help:      "Touchpoints appended to attribution ledgers",
			},
			[]string{"source"},
		),
		TouchpointsDeduped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "touchpoints_deduped_total",
				Help:      "Touchpoints skipped as duplicate replays",
			},
			[]string{"source"},
		),
		AttributionsComputed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attributions_computed_total",
				Help:      "Attribution results computed by model",
			},
			[]string{"model"},
		),
		AttributionsEmpty: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attributions_empty_total",
				Help:      "Conversions attributed with no qualifying touchpoints",
			},
		),
		AttributionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attribution_latency_seconds",
				Help:      "Attribution computation latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"model"},
		),
		ReportsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_generated_total",
				Help:      "Cross-channel reports generated",
			},
			[]string{"brand_id"},
		),
		AdapterRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adapter_rejections_total",
				Help:      "Raw metric records rejected by the adapter",
			},
			[]string{"reason"},
		),
		PropensityScores: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "propensity_scores_total",
				Help:      "Propensity scores computed by segment",
			},
			[]string{"segment"},
		),
		LTVEstimations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ltv_estimations_total",
				Help:      "LTV cohort estimations produced",
			},
			[]string{"segment"},
		),
		AnomalyAlerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomaly_alerts_total",
				Help:      "Anomaly alerts raised by severity",
			},
			[]string{"severity", "metric"},
		),
		MMMCalculations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mmm_calculations_total",
				Help:      "Media-mix correlations computed by confidence band",
			},
			[]string{"confidence"},
		),
		PersistFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_failures_total",
				Help:      "Best-effort persistence failures by store",
			},
			[]string{"store"},
		),
		GeoLookupLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"found"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEventSynced records one processed journey event.
func (m *Metrics) RecordEventSynced(eventType string) {
	m.EventsSynced.WithLabelValues(eventType).Inc()
}

// RecordTouchpoint records an appended touchpoint.
func (m *Metrics) RecordTouchpoint(source string) {
	m.TouchpointsRecorded.WithLabelValues(source).Inc()
}

// RecordTouchpointDedup records a skipped duplicate touchpoint.
func (m *Metrics) RecordTouchpointDedup(source string) {
	m.TouchpointsDeduped.WithLabelValues(source).Inc()
}

// RecordAttribution records a computed attribution result.
func (m *Metrics) RecordAttribution(model string, points int, latency time.Duration) {
	m.AttributionsComputed.WithLabelValues(model).Inc()
	m.AttributionLatency.WithLabelValues(model).Observe(latency.Seconds())
	if points == 0 {
		m.AttributionsEmpty.Inc()
	}
}

// RecordReport records a generated cross-channel report.
func (m *Metrics) RecordReport(brandID string) {
	m.ReportsGenerated.WithLabelValues(brandID).Inc()
}

// RecordAdapterRejection records a raw record the adapter refused.
func (m *Metrics) RecordAdapterRejection(reason string) {
	m.AdapterRejections.WithLabelValues(reason).Inc()
}

// RecordPropensity records a computed propensity score.
func (m *Metrics) RecordPropensity(segment string) {
	m.PropensityScores.WithLabelValues(segment).Inc()
}

// RecordLTVEstimation records a produced cohort estimation.
func (m *Metrics) RecordLTVEstimation(segment string) {
	m.LTVEstimations.WithLabelValues(segment).Inc()
}

// RecordAnomalyAlert records a raised alert.
func (m *Metrics) RecordAnomalyAlert(severity, metric string) {
	m.AnomalyAlerts.WithLabelValues(severity, metric).Inc()
}

// RecordMMMCalculation records a computed correlation.
func (m *Metrics) RecordMMMCalculation(confidence string) {
	m.MMMCalculations.WithLabelValues(confidence).Inc()
}

// RecordPersistFailure records a swallowed best-effort write failure.
func (m *Metrics) RecordPersistFailure(store string) {
	m.PersistFailures.WithLabelValues(store).Inc()
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(found bool, latency time.Duration) {
	label := "false"
	if found {
		label = "true"
	}
	m.GeoLookupLatency.WithLabelValues(label).Observe(latency.Seconds())
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
