package mmm

import (
	"testing"
	"time"

	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, spend, organic func(i int) float64) []models.DailySpendPoint {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.DailySpendPoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.DailySpendPoint{
			Date:         base.AddDate(0, 0, i),
			Spend:        spend(i),
			OrganicSales: organic(i),
		}
	}
	return points
}

func TestCorrelatePerfectPositive(t *testing.T) {
	points := series(20,
		func(i int) float64 { return 100 + float64(i)*10 },
		func(i int) float64 { return 50 + float64(i)*5 },
	)

	result := Correlate(points)
	assert.InDelta(t, 1.0, result.CorrelationScore, 1e-9)
	assert.Equal(t, models.ConfidenceStrong, result.ConfidenceLevel)
	assert.InDelta(t, 100.0, result.EstimatedOrganicLift, 1e-6)
	assert.Equal(t, 20, result.DaysAnalyzed)
	assert.Zero(t, result.OutliersRemoved)
}

func TestCorrelatePerfectNegative(t *testing.T) {
	points := series(20,
		func(i int) float64 { return 100 + float64(i)*10 },
		func(i int) float64 { return 500 - float64(i)*5 },
	)

	result := Correlate(points)
	assert.InDelta(t, -1.0, result.CorrelationScore, 1e-9)
	assert.Equal(t, models.ConfidenceStrong, result.ConfidenceLevel)
	// Lift is only claimed for positive correlation
	assert.Zero(t, result.EstimatedOrganicLift)
}

func TestCorrelateConstantSpendNullResult(t *testing.T) {
	points := series(20,
		func(i int) float64 { return 250 },
		func(i int) float64 { return 50 + float64(i)*3 },
	)

	result := Correlate(points)
	assert.Zero(t, result.CorrelationScore)
	assert.Equal(t, models.ConfidenceWeak, result.ConfidenceLevel)
	assert.Equal(t, "No measurable relationship between paid spend and organic sales.", result.Insight)
}

func TestCorrelateTooFewDaysNeutralResult(t *testing.T) {
	points := series(13,
		func(i int) float64 { return float64(i) },
		func(i int) float64 { return float64(i) },
	)

	result := Correlate(points)
	require.NotNil(t, result)
	assert.Zero(t, result.CorrelationScore)
	assert.Equal(t, models.ConfidenceWeak, result.ConfidenceLevel)
	assert.Zero(t, result.EstimatedOrganicLift)
	assert.Equal(t, 13, result.DaysAnalyzed)
	assert.Contains(t, result.Insight, "Not enough paired history")
}

func TestCorrelateEmptySeriesNeutralResult(t *testing.T) {
	result := Correlate(nil)
	require.NotNil(t, result)
	assert.Zero(t, result.CorrelationScore)
	assert.Equal(t, models.ConfidenceWeak, result.ConfidenceLevel)
	assert.Zero(t, result.DaysAnalyzed)
	assert.Contains(t, result.Insight, "Not enough paired history")
}

func TestCorrelateRemovesSpendOutliers(t *testing.T) {
	points := series(30,
		func(i int) float64 { return 100 + float64(i%5) },
		func(i int) float64 { return 50 + float64(i%5) },
	)
	// One launch-day spike far outside the band
	points[15].Spend = 10000

	result := Correlate(points)
	assert.Equal(t, 1, result.OutliersRemoved)
	assert.Equal(t, 29, result.DaysAnalyzed)
}

func TestConfidenceBands(t *testing.T) {
	tests := []struct {
		r        float64
		expected models.ConfidenceLevel
	}{
		{0.9, models.ConfidenceStrong},
		{-0.8, models.ConfidenceStrong},
		{0.7, models.ConfidenceModerate},
		{0.5, models.ConfidenceModerate},
		{0.4, models.ConfidenceWeak},
		{0.1, models.ConfidenceWeak},
		{0, models.ConfidenceWeak},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, confidence(tt.r), "r=%v", tt.r)
	}
}

func TestJoinDailyMergesOnDate(t *testing.T) {
	day1 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	spend := []models.MetricPoint{
		{Date: day1.Add(3 * time.Hour), Value: 100},
		{Date: day1.Add(9 * time.Hour), Value: 50},
		{Date: day2, Value: 80},
	}
	organic := []models.MetricPoint{
		{Date: day1, Value: 40},
	}

	joined := joinDaily(spend, organic)
	require.Len(t, joined, 2)
	assert.Equal(t, day1, joined[0].Date)
	assert.InDelta(t, 150.0, joined[0].Spend, 1e-9)
	assert.InDelta(t, 40.0, joined[0].OrganicSales, 1e-9)
	assert.InDelta(t, 80.0, joined[1].Spend, 1e-9)
	assert.Zero(t, joined[1].OrganicSales)
}
