package anomaly

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/vector-attribution/internal/config"
	"github.com/radiusdt/vector-attribution/internal/metrics"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/radiusdt/vector-attribution/internal/storage"
	"go.uber.org/zap"
)

// monitoredMetrics are the ratio and volume metrics the detector
// z-scores against their trailing history.
var monitoredMetrics = []string{"cpc", "ctr", "spend"}

// Detector flags entities whose current metrics drift outside their
// historical band. Stateless between runs; every run re-reads history.
type Detector struct {
	metricStore storage.MetricStore
	alertStore  storage.AlertStore
	cfg         config.AnomalyConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewDetector creates an anomaly detector.
func NewDetector(
	metricStore storage.MetricStore,
	alertStore storage.AlertStore,
	cfg config.AnomalyConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Detector {
	if cfg.YellowThreshold <= 0 {
		cfg.YellowThreshold = 2.0
	}
	if cfg.RedThreshold <= 0 {
		cfg.RedThreshold = 3.0
	}
	if cfg.MinImpressions <= 0 {
		cfg.MinImpressions = 100
	}
	if cfg.MinSpend <= 0 {
		cfg.MinSpend = 10
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 30
	}
	return &Detector{
		metricStore: metricStore,
		alertStore:  alertStore,
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
	}
}

// DetectBatch checks each canonical metric against its entity's trailing
// history and persists the alerts it raises. Low-volume entities are
// skipped entirely: ratio metrics on a handful of impressions are noise,
// not signal.
func (d *Detector) DetectBatch(ctx context.Context, brandID string, current []models.CanonicalMetric) ([]models.AnomalyAlert, error) {
	var alerts []models.AnomalyAlert
	for _, cm := range current {
		// Below either volume minimum the entity is skipped outright.
		if cm.Metrics.Impressions < d.cfg.MinImpressions || cm.Metrics.Spend < d.cfg.MinSpend {
			continue
		}
		entityAlerts, err := d.detectEntity(ctx, brandID, cm)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, entityAlerts...)
	}

	if len(alerts) > 0 {
		if err := d.alertStore.SaveAlerts(ctx, alerts); err != nil {
			return nil, fmt.Errorf("failed to save alerts: %w", err)
		}
	}
	return alerts, nil
}

func (d *Detector) detectEntity(ctx context.Context, brandID string, cm models.CanonicalMetric) ([]models.AnomalyAlert, error) {
	var alerts []models.AnomalyAlert
	for _, metric := range monitoredMetrics {
		history, err := d.metricStore.MetricHistory(ctx, cm.ExternalID, metric, d.cfg.HistoryDays)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s history for %s: %w", metric, cm.ExternalID, err)
		}
		if len(history) < 2 {
			continue
		}

		values := make([]float64, len(history))
		for i, p := range history {
			values[i] = p.Value
		}
		mean, stddev := meanStddev(values)
		// Flat history has no band to drift from.
		if stddev == 0 {
			continue
		}

		current := metricValue(cm.Metrics, metric)
		z := (current - mean) / stddev
		severity, ok := d.severity(math.Abs(z))
		if !ok {
			continue
		}

		alert := models.AnomalyAlert{
			ID:         uuid.New().String(),
			BrandID:    brandID,
			Severity:   severity,
			MetricType: metric,
			Context: models.AlertContext{
				CurrentValue:  current,
				ExpectedValue: mean,
				Deviation:     z,
				EntityID:      cm.ExternalID,
				EntityName:    cm.Name,
				Platform:      cm.Platform,
			},
			Status:    models.AlertActive,
			CreatedAt: time.Now().UTC(),
		}
		alerts = append(alerts, alert)

		if d.metrics != nil {
			d.metrics.RecordAnomalyAlert(string(severity), metric)
		}
		d.logger.Info("anomaly detected",
			zap.String("entity_id", cm.ExternalID),
			zap.String("metric", metric),
			zap.Float64("z_score", z),
			zap.String("severity", string(severity)),
		)
	}
	return alerts, nil
}

// severity grades an absolute z-score. Below the yellow threshold no
// alert fires.
func (d *Detector) severity(absZ float64) (models.AlertSeverity, bool) {
	switch {
	case absZ >= d.cfg.RedThreshold:
		return models.SeverityHigh, true
	case absZ >= d.cfg.YellowThreshold:
		return models.SeverityMedium, true
	default:
		return "", false
	}
}

func metricValue(m models.UnifiedMetrics, metric string) float64 {
	switch metric {
	case "cpc":
		return m.CPC
	case "ctr":
		return m.CTR
	case "spend":
		return m.Spend
	default:
		return 0
	}
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
