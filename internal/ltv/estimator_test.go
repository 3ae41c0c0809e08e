package ltv

import (
	"context"
	"fmt"
	"testing"

	"github.com/radiusdt/vector-attribution/internal/config"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/radiusdt/vector-attribution/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEstimator() (*Estimator, *storage.InMemoryJourneyStore, *storage.InMemoryLTVStore) {
	journey := storage.NewInMemoryJourneyStore()
	store := storage.NewInMemoryLTVStore()
	est := NewEstimator(journey, store, config.LTVConfig{BatchSize: 10}, zap.NewNop(), nil)
	return est, journey, store
}

func seedCohort(journey *storage.InMemoryJourneyStore, brandID string, segment models.Segment, leads int, revenuePerLead float64) {
	for i := 0; i < leads; i++ {
		id := fmt.Sprintf("%s-%s-%d", brandID, segment, i)
		journey.PutLead(&models.Lead{ID: id, BrandID: brandID, Segment: segment})
		if revenuePerLead > 0 {
			journey.AppendTransaction(models.Transaction{
				ID: id + "-txn", LeadID: id, BrandID: brandID, Amount: revenuePerLead,
			})
		}
	}
}

func TestConfidenceForCohort(t *testing.T) {
	tests := []struct {
		size     int
		expected float64
	}{
		{0, 0.3},
		{9, 0.3},
		{10, 0.6},
		{49, 0.6},
		{50, 0.8},
		{199, 0.8},
		{200, 0.9},
		{5000, 0.9},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ConfidenceForCohort(tt.size), "size %d", tt.size)
	}
}

func TestEstimateSegmentProjections(t *testing.T) {
	est, journey, _ := newTestEstimator()
	ctx := context.Background()

	seedCohort(journey, "brand-1", models.SegmentHot, 25, 100)

	result, err := est.EstimateSegment(ctx, "brand-1", models.SegmentHot)
	require.NoError(t, err)
	assert.Equal(t, 25, result.LeadsInCohort)
	assert.InDelta(t, 2500.0, result.TotalRevenue, 1e-9)
	assert.InDelta(t, 100.0, result.AvgRevenuePerLead, 1e-9)
	assert.InDelta(t, 120.0, result.ProjectedLTV.M1, 1e-9)
	assert.InDelta(t, 180.0, result.ProjectedLTV.M3, 1e-9)
	assert.InDelta(t, 250.0, result.ProjectedLTV.M6, 1e-9)
	assert.InDelta(t, 350.0, result.ProjectedLTV.M12, 1e-9)
	assert.Equal(t, 0.6, result.ConfidenceScore)
}

func TestEstimateSegmentEmptyCohort(t *testing.T) {
	est, _, store := newTestEstimator()
	ctx := context.Background()

	result, err := est.EstimateSegment(ctx, "brand-1", models.SegmentCold)
	require.NoError(t, err)
	assert.Zero(t, result.LeadsInCohort)
	assert.Zero(t, result.TotalRevenue)
	assert.Zero(t, result.ProjectedLTV.M12)
	assert.Equal(t, 0.3, result.ConfidenceScore)

	// Empty cohorts still get persisted so all segments show up
	stored, err := store.ListEstimations(ctx, "brand-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestEstimateSegmentBatchesLargeCohort(t *testing.T) {
	// 37 leads forces four sequential lookups under the 10-id ceiling;
	// the in-memory store rejects any oversized batch outright.
	est, journey, _ := newTestEstimator()
	ctx := context.Background()

	seedCohort(journey, "brand-1", models.SegmentWarm, 37, 20)

	result, err := est.EstimateSegment(ctx, "brand-1", models.SegmentWarm)
	require.NoError(t, err)
	assert.Equal(t, 37, result.LeadsInCohort)
	assert.InDelta(t, 740.0, result.TotalRevenue, 1e-9)
}

func TestEstimateBrandCoversAllSegments(t *testing.T) {
	est, journey, _ := newTestEstimator()
	ctx := context.Background()

	seedCohort(journey, "brand-1", models.SegmentHot, 3, 200)
	seedCohort(journey, "brand-1", models.SegmentCold, 5, 10)

	results, err := est.EstimateBrand(ctx, "brand-1")
	require.NoError(t, err)
	require.Len(t, results, 3)

	bySegment := map[models.Segment]*models.LTVEstimation{}
	for _, r := range results {
		bySegment[r.Segment] = r
	}
	assert.Equal(t, 3, bySegment[models.SegmentHot].LeadsInCohort)
	assert.Equal(t, 0, bySegment[models.SegmentWarm].LeadsInCohort)
	assert.Equal(t, 5, bySegment[models.SegmentCold].LeadsInCohort)
}

func TestOverallLTVRevenuePerLead(t *testing.T) {
	estimations := []*models.LTVEstimation{
		{Segment: models.SegmentHot, LeadsInCohort: 10, TotalRevenue: 1000},
		{Segment: models.SegmentCold, LeadsInCohort: 90, TotalRevenue: 0},
	}

	// Revenue per lead across cohorts, not a projection blend
	assert.InDelta(t, 10.0, OverallLTV(estimations), 1e-9)

	assert.Zero(t, OverallLTV(nil))
	assert.Zero(t, OverallLTV([]*models.LTVEstimation{{Segment: models.SegmentWarm}}))
}
