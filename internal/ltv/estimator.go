package ltv

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

// Segment growth multipliers at the 1/3/6/12 month horizons. Hotter
// cohorts compound faster.
var defaultMultipliers = map[models.Segment]models.LTVProjection{
	models.SegmentHot:  {M1: 1.2, M3: 1.8, M6: 2.5, M12: 3.5},
	models.SegmentWarm: {M1: 1.1, M3: 1.4, M6: 1.9, M12: 2.4},
	models.SegmentCold: {M1: 1.0, M3: 1.15, M6: 1.3, M12: 1.5},
}

// Estimator projects cohort lifetime value per propensity segment from
// realized transaction revenue.
type Estimator struct {
	journey   storage.JourneyStore
	store     storage.LTVStore
	batchSize int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewEstimator creates an LTV estimator.
func NewEstimator(
	journey storage.JourneyStore,
	store storage.LTVStore,
	cfg config.LTVConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Estimator {
	batch := cfg.BatchSize
	if batch < 1 || batch > 10 {
		batch = 10
	}
	return &Estimator{
		journey:   journey,
		store:     store,
		batchSize: batch,
		logger:    logger,
		metrics:   m,
	}
}

// EstimateBrand runs one estimation per segment for the brand and
// persists each. A segment with zero leads still yields an estimation
// so dashboards always see all three cohorts.
func (e *Estimator) EstimateBrand(ctx context.Context, brandID string) ([]*models.LTVEstimation, error) {
	out := make([]*models.LTVEstimation, 0, len(models.Segments))
	for _, segment := range models.Segments {
		est, err := e.EstimateSegment(ctx, brandID, segment)
		if err != nil {
			return nil, err
		}
		out = append(out, est)
	}
	return out, nil
}

// EstimateSegment builds the cohort estimation for one segment. Lead
// transactions are resolved in sequential batches capped at the store's
// bulk-lookup ceiling; the batches must not run concurrently because the
// store rejects overlapping bulk reads on the same collection.
func (e *Estimator) EstimateSegment(ctx context.Context, brandID string, segment models.Segment) (*models.LTVEstimation, error) {
	leadIDs, err := e.journey.ListLeadIDsBySegment(ctx, brandID, segment)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment leads: %w", err)
	}

	var totalRevenue float64
	for start := 0; start < len(leadIDs); start += e.batchSize {
		end := start + e.batchSize
		if end > len(leadIDs) {
			end = len(leadIDs)
		}
		txns, err := e.journey.ListTransactionsByLeads(ctx, leadIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to list cohort transactions: %w", err)
		}
		for _, t := range txns {
			totalRevenue += t.Amount
		}
	}

	est := e.build(brandID, segment, len(leadIDs), totalRevenue)

	if err := e.store.UpsertEstimation(ctx, est); err != nil {
		return nil, fmt.Errorf("failed to upsert estimation: %w", err)
	}
	if e.metrics != nil {
		e.metrics.RecordLTVEstimation(string(segment))
	}
	return est, nil
}

func (e *Estimator) build(brandID string, segment models.Segment, cohortSize int, totalRevenue float64) *models.LTVEstimation {
	var avg float64
	if cohortSize > 0 {
		avg = totalRevenue / float64(cohortSize)
	}

	mult := defaultMultipliers[segment]
	return &models.LTVEstimation{
		CohortID:          fmt.Sprintf("ltv_%s_%s", brandID, segment),
		BrandID:           brandID,
		Segment:           segment,
		LeadsInCohort:     cohortSize,
		TotalRevenue:      totalRevenue,
		AvgRevenuePerLead: avg,
		ProjectedLTV: models.LTVProjection{
			M1:  avg * mult.M1,
			M3:  avg * mult.M3,
			M6:  avg * mult.M6,
			M12: avg * mult.M12,
		},
		GrowthMultiplier: mult,
		ConfidenceScore:  ConfidenceForCohort(cohortSize),
		EstimatedAt:      time.Now().UTC(),
	}
}

// ConfidenceForCohort steps confidence up with cohort size. Boundary
// sizes take the higher band.
func ConfidenceForCohort(size int) float64 {
	switch {
	case size < 10:
		return 0.3
	case size < 50:
		return 0.6
	case size < 200:
		return 0.8
	default:
		return 0.9
	}
}

// OverallLTV is realized revenue per lead across all cohorts: total
// revenue divided by total leads.
func OverallLTV(estimations []*models.LTVEstimation) float64 {
	var revenue float64
	var leads int
	for _, est := range estimations {
		revenue += est.TotalRevenue
		leads += est.LeadsInCohort
	}
	if leads == 0 {
		return 0
	}
	return revenue / float64(leads)
}
