package crosschannel

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/vector-attribution/internal/config"
	"github.com/radiusdt/vector-attribution/internal/metrics"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/radiusdt/vector-attribution/internal/storage"
	"go.uber.org/zap"
)

// Aggregator builds blended cross-channel reports from normalized
// metrics. Reports are idempotent per brand and period: the same window
// always produces the same report id, so reruns overwrite.
type Aggregator struct {
	adapter           *Adapter
	metricStore       storage.MetricStore
	reportStore       storage.ReportStore
	assumedOrderValue float64
	logger            *zap.Logger
	metrics           *metrics.Metrics
}

// NewAggregator creates a cross-channel aggregator.
func NewAggregator(
	adapter *Adapter,
	metricStore storage.MetricStore,
	reportStore storage.ReportStore,
	cfg config.AggregatorConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Aggregator {
	aov := cfg.AssumedOrderValue
	if aov <= 0 {
		aov = 50
	}
	return &Aggregator{
		adapter:           adapter,
		metricStore:       metricStore,
		reportStore:       reportStore,
		assumedOrderValue: aov,
		logger:            logger,
		metrics:           m,
	}
}

// ReportID derives the deterministic report identifier for a brand and
// period start.
func ReportID(brandID string, periodStart time.Time) string {
	return fmt.Sprintf("cross_channel_%s_%s", brandID, periodStart.Format("2006-01-02"))
}

// GenerateReport aggregates the brand's raw metrics over the window into
// a blended report and upserts it. The breakdown carries only channels
// that spent or converted in the window.
func (a *Aggregator) GenerateReport(ctx context.Context, brandID string, period models.ReportPeriod) (*models.CrossChannelReport, error) {
	raw, err := a.metricStore.ListRawMetrics(ctx, brandID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw metrics: %w", err)
	}

	canonical, err := a.adapter.NormalizeBatch(raw)
	if err != nil {
		// A malformed record means the feed itself is suspect; a report
		// built from the remainder would silently understate the window.
		a.logger.Error("aborting aggregation on malformed metric record",
			zap.Error(err),
			zap.String("brand_id", brandID),
		)
		return nil, fmt.Errorf("failed to normalize raw metrics: %w", err)
	}

	report := a.Build(brandID, period, canonical)

	if err := a.reportStore.UpsertReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to upsert report: %w", err)
	}
	if a.metrics != nil {
		a.metrics.RecordReport(brandID)
	}
	return report, nil
}

// Build assembles the report from already-normalized metrics. Pure; no
// I/O.
func (a *Aggregator) Build(brandID string, period models.ReportPeriod, canonical []models.CanonicalMetric) *models.CrossChannelReport {
	perPlatform := make(map[models.Platform]models.UnifiedMetrics, len(models.KnownPlatforms))
	for _, p := range models.KnownPlatforms {
		perPlatform[p] = models.UnifiedMetrics{}
	}

	var totals models.UnifiedMetrics
	for _, cm := range canonical {
		bucket := perPlatform[cm.Platform]
		bucket.Spend += cm.Metrics.Spend
		bucket.Clicks += cm.Metrics.Clicks
		bucket.Impressions += cm.Metrics.Impressions
		bucket.Conversions += cm.Metrics.Conversions
		perPlatform[cm.Platform] = bucket

		totals.Spend += cm.Metrics.Spend
		totals.Clicks += cm.Metrics.Clicks
		totals.Impressions += cm.Metrics.Impressions
		totals.Conversions += cm.Metrics.Conversions
	}

	channels := make(map[models.Platform]models.ChannelBreakdown, len(perPlatform))
	for platform, m := range perPlatform {
		// A platform with no spend and no conversions adds nothing to the
		// breakdown.
		if m.Spend == 0 && m.Conversions == 0 {
			continue
		}
		deriveRates(&m)
		breakdown := models.ChannelBreakdown{Metrics: m}
		if totals.Spend > 0 {
			breakdown.ShareOfSpend = m.Spend / totals.Spend * 100
		}
		if totals.Conversions > 0 {
			breakdown.ShareOfConversions = float64(m.Conversions) / float64(totals.Conversions) * 100
		}
		channels[platform] = breakdown
	}

	deriveRates(&totals)
	blended := models.BlendedTotals{UnifiedMetrics: totals}
	// Revenue proxy until real transaction joins land: conversions times
	// an assumed order value.
	if totals.Spend > 0 {
		blended.BlendedROAS = float64(totals.Conversions) * a.assumedOrderValue / totals.Spend
	}
	if totals.Conversions > 0 {
		blended.BlendedCPA = totals.Spend / float64(totals.Conversions)
	}

	return &models.CrossChannelReport{
		ID:          ReportID(brandID, period.Start),
		BrandID:     brandID,
		Period:      period,
		Totals:      blended,
		Channels:    channels,
		GeneratedAt: time.Now().UTC(),
	}
}

// deriveRates recomputes ratio metrics from the summed counts, guarding
// every division.
func deriveRates(m *models.UnifiedMetrics) {
	if m.Impressions > 0 {
		m.CTR = float64(m.Clicks) / float64(m.Impressions) * 100
	}
	if m.Clicks > 0 {
		m.CPC = m.Spend / float64(m.Clicks)
	}
	if m.Conversions > 0 {
		m.CPA = m.Spend / float64(m.Conversions)
	}
}
