package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/radiusdt/vector-attribution/internal/config"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/radiusdt/vector-attribution/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDetector() (*Detector, *storage.InMemoryMetricStore, *storage.InMemoryAlertStore) {
	metricStore := storage.NewInMemoryMetricStore()
	alertStore := storage.NewInMemoryAlertStore()
	det := NewDetector(metricStore, alertStore, config.AnomalyConfig{}, zap.NewNop(), nil)
	return det, metricStore, alertStore
}

func flatHistory(value float64, days int) []models.MetricPoint {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.MetricPoint, days)
	for i := range points {
		points[i] = models.MetricPoint{Date: base.AddDate(0, 0, i), Value: value}
	}
	return points
}

// alternatingHistory yields mean=center, stddev=spread.
func alternatingHistory(center, spread float64, days int) []models.MetricPoint {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.MetricPoint, days)
	for i := range points {
		v := center + spread
		if i%2 == 1 {
			v = center - spread
		}
		points[i] = models.MetricPoint{Date: base.AddDate(0, 0, i), Value: v}
	}
	return points
}

func campaignMetric(cpc float64) models.CanonicalMetric {
	return models.CanonicalMetric{
		BrandID:    "brand-1",
		Platform:   models.PlatformMeta,
		ExternalID: "camp-1",
		Name:       "Spring Launch",
		Metrics:    models.UnifiedMetrics{CPC: cpc, Impressions: 5000, Spend: 200},
	}
}

func TestDetectHighSeverity(t *testing.T) {
	det, metricStore, _ := newTestDetector()
	ctx := context.Background()

	// mean 1.0, stddev 0.2; current cpc 1.7 is z=3.5
	metricStore.PutHistory("camp-1", "cpc", alternatingHistory(1.0, 0.2, 30))
	metricStore.PutHistory("camp-1", "ctr", flatHistory(2.0, 30))
	metricStore.PutHistory("camp-1", "spend", flatHistory(200, 30))

	alerts, err := det.DetectBatch(ctx, "brand-1", []models.CanonicalMetric{campaignMetric(1.7)})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, "cpc", alert.MetricType)
	assert.Equal(t, models.AlertActive, alert.Status)
	assert.Equal(t, "camp-1", alert.Context.EntityID)
	assert.InDelta(t, 1.7, alert.Context.CurrentValue, 1e-9)
	assert.InDelta(t, 1.0, alert.Context.ExpectedValue, 1e-9)
	assert.InDelta(t, 3.5, alert.Context.Deviation, 1e-9)
	assert.NotEmpty(t, alert.ID)
}

func TestDetectMediumSeverity(t *testing.T) {
	det, metricStore, _ := newTestDetector()
	ctx := context.Background()

	// current cpc 1.44 is z=2.2
	metricStore.PutHistory("camp-1", "cpc", alternatingHistory(1.0, 0.2, 30))
	metricStore.PutHistory("camp-1", "ctr", flatHistory(2.0, 30))
	metricStore.PutHistory("camp-1", "spend", flatHistory(200, 30))

	alerts, err := det.DetectBatch(ctx, "brand-1", []models.CanonicalMetric{campaignMetric(1.44)})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
}

func TestDetectWithinBandNoAlert(t *testing.T) {
	det, metricStore, _ := newTestDetector()
	ctx := context.Background()

	// current cpc 1.1 is z=0.5
	metricStore.PutHistory("camp-1", "cpc", alternatingHistory(1.0, 0.2, 30))
	metricStore.PutHistory("camp-1", "ctr", flatHistory(2.0, 30))
	metricStore.PutHistory("camp-1", "spend", flatHistory(200, 30))

	alerts, err := det.DetectBatch(ctx, "brand-1", []models.CanonicalMetric{campaignMetric(1.1)})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDetectFlatHistorySkipped(t *testing.T) {
	det, metricStore, _ := newTestDetector()
	ctx := context.Background()

	// Zero variance history has no band to drift from, even when the
	// current value is wildly different
	metricStore.PutHistory("camp-1", "cpc", flatHistory(1.0, 30))
	metricStore.PutHistory("camp-1", "ctr", flatHistory(2.0, 30))
	metricStore.PutHistory("camp-1", "spend", flatHistory(200, 30))

	alerts, err := det.DetectBatch(ctx, "brand-1", []models.CanonicalMetric{campaignMetric(50.0)})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDetectLowVolumeSkipped(t *testing.T) {
	det, metricStore, _ := newTestDetector()
	ctx := context.Background()

	metricStore.PutHistory("camp-1", "cpc", alternatingHistory(1.0, 0.2, 30))

	tests := []struct {
		name        string
		impressions int64
		spend       float64
	}{
		{"both below", 40, 3},
		{"spend below only", 5000, 3},
		{"impressions below only", 40, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := campaignMetric(5.0)
			current.Metrics.Impressions = tt.impressions
			current.Metrics.Spend = tt.spend

			alerts, err := det.DetectBatch(ctx, "brand-1", []models.CanonicalMetric{current})
			require.NoError(t, err)
			assert.Empty(t, alerts)
		})
	}
}

func TestDetectInsufficientHistorySkipped(t *testing.T) {
	det, metricStore, _ := newTestDetector()
	ctx := context.Background()

	metricStore.PutHistory("camp-1", "cpc", flatHistory(1.0, 1))

	alerts, err := det.DetectBatch(ctx, "brand-1", []models.CanonicalMetric{campaignMetric(9.9)})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDetectPersistsAlerts(t *testing.T) {
	det, metricStore, alertStore := newTestDetector()
	ctx := context.Background()

	metricStore.PutHistory("camp-1", "cpc", alternatingHistory(1.0, 0.2, 30))
	metricStore.PutHistory("camp-1", "ctr", flatHistory(2.0, 30))
	metricStore.PutHistory("camp-1", "spend", flatHistory(200, 30))

	_, err := det.DetectBatch(ctx, "brand-1", []models.CanonicalMetric{campaignMetric(2.0)})
	require.NoError(t, err)

	stored, err := alertStore.ListAlerts(ctx, "brand-1", models.AlertActive)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// Operator lifecycle
	require.NoError(t, alertStore.UpdateAlertStatus(ctx, stored[0].ID, models.AlertAcknowledged))
	active, err := alertStore.ListAlerts(ctx, "brand-1", models.AlertActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}
