package mmm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/radiusdt/vector-attribution/internal/metrics"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/radiusdt/vector-attribution/internal/storage"
	"go.uber.org/zap"
)

// Service assembles the paired daily series behind spend correlation.
// Spend comes from the metric store, organic sales from the daily
// counters; days are joined on calendar date and unmatched days are
// kept with a zero on the missing side.
type Service struct {
	metricStore storage.MetricStore
	organic     storage.OrganicSalesCounter
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewService creates a correlation service.
func NewService(
	metricStore storage.MetricStore,
	organic storage.OrganicSalesCounter,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		metricStore: metricStore,
		organic:     organic,
		logger:      logger,
		metrics:     m,
	}
}

// CorrelationForBrand joins the brand's daily spend and organic sales
// over the window and correlates them.
func (s *Service) CorrelationForBrand(ctx context.Context, brandID string, start, end time.Time) (*models.MMMResult, error) {
	spend, err := s.metricStore.DailySpendSeries(ctx, brandID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend series: %w", err)
	}
	organic, err := s.organic.DailySeries(ctx, brandID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load organic series: %w", err)
	}

	points := joinDaily(spend, organic)
	result := Correlate(points)

	if s.metrics != nil {
		s.metrics.RecordMMMCalculation(string(result.ConfidenceLevel))
	}
	s.logger.Info("computed spend correlation",
		zap.String("brand_id", brandID),
		zap.Float64("correlation", result.CorrelationScore),
		zap.String("confidence", string(result.ConfidenceLevel)),
		zap.Int("days", result.DaysAnalyzed),
	)
	return result, nil
}

// joinDaily merges the two series on day. Output is ordered by date.
func joinDaily(spend, organic []models.MetricPoint) []models.DailySpendPoint {
	byDay := make(map[time.Time]*models.DailySpendPoint, len(spend))
	order := make([]time.Time, 0, len(spend)+len(organic))

	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	for _, p := range spend {
		d := day(p.Date)
		if _, ok := byDay[d]; !ok {
			byDay[d] = &models.DailySpendPoint{Date: d}
			order = append(order, d)
		}
		byDay[d].Spend += p.Value
	}
	for _, p := range organic {
		d := day(p.Date)
		if _, ok := byDay[d]; !ok {
			byDay[d] = &models.DailySpendPoint{Date: d}
			order = append(order, d)
		}
		byDay[d].OrganicSales += p.Value
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	out := make([]models.DailySpendPoint, 0, len(order))
	for _, d := range order {
		out = append(out, *byDay[d])
	}
	return out
}
