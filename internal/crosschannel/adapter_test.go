package crosschannel

import (
	"testing"
	"time"

	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLegacyShape(t *testing.T) {
	adapter := NewAdapter(nil)
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	cm, err := adapter.Normalize(models.RawMetricRecord{
		ID:        "rec-1",
		BrandID:   "brand-1",
		Platform:  "meta",
		Timestamp: ts,
		Metrics: &models.UnifiedMetrics{
			Spend:       100,
			Clicks:      250,
			Impressions: 10000,
			Conversions: 12,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlatformMeta, cm.Platform)
	assert.Equal(t, 100.0, cm.Metrics.Spend)
	assert.Equal(t, int64(250), cm.Metrics.Clicks)
	assert.Equal(t, int64(10000), cm.Metrics.Impressions)
}

func TestNormalizeCurrentShape(t *testing.T) {
	adapter := NewAdapter(nil)

	tests := []struct {
		source   string
		expected models.Platform
	}{
		{"meta_ads", models.PlatformMeta},
		{"google_ads", models.PlatformGoogle},
		{"tiktok_ads", models.PlatformTikTok},
		{"linkedin_ads", models.PlatformLinkedIn},
		{"klaviyo", models.PlatformEmail},
		{"some_new_collector", models.PlatformAggregated},
	}

	for _, tt := range tests {
		cm, err := adapter.Normalize(models.RawMetricRecord{
			ID:      "rec-1",
			BrandID: "brand-1",
			Source:  tt.source,
			Data:    &models.CurrentMetrics{Spend: 50, Conversions: 3, CPC: 1.2},
		})
		require.NoError(t, err, tt.source)
		assert.Equal(t, tt.expected, cm.Platform, tt.source)
		assert.Equal(t, 50.0, cm.Metrics.Spend)
		// Current shape carries no clicks or impressions
		assert.Zero(t, cm.Metrics.Clicks)
		assert.Zero(t, cm.Metrics.Impressions)
	}
}

func TestNormalizeRejectsInvalidShapes(t *testing.T) {
	adapter := NewAdapter(nil)

	// Neither shape
	_, err := adapter.Normalize(models.RawMetricRecord{ID: "rec-1", BrandID: "brand-1"})
	assert.Error(t, err)

	// Platform without metrics payload
	_, err = adapter.Normalize(models.RawMetricRecord{ID: "rec-2", Platform: "meta"})
	assert.Error(t, err)

	// Both shapes at once
	_, err = adapter.Normalize(models.RawMetricRecord{
		ID:       "rec-3",
		Platform: "meta",
		Metrics:  &models.UnifiedMetrics{},
		Source:   "meta_ads",
		Data:     &models.CurrentMetrics{},
	})
	assert.Error(t, err)
}

func TestNormalizeBatchPartial(t *testing.T) {
	adapter := NewAdapter(nil)

	out, err := adapter.NormalizeBatch([]models.RawMetricRecord{
		{ID: "good", BrandID: "b", Platform: "meta", Metrics: &models.UnifiedMetrics{Spend: 10}},
		{ID: "bad", BrandID: "b"},
		{ID: "good2", BrandID: "b", Source: "google_ads", Data: &models.CurrentMetrics{Spend: 20}},
	})
	assert.Error(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.PlatformMeta, out[0].Platform)
	assert.Equal(t, models.PlatformGoogle, out[1].Platform)
}
