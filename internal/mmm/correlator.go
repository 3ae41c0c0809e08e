package mmm

import (
	"fmt"
	"math"

	"github.com/radiusdt/vector-attribution/internal/models"
)

// MinDays is the minimum paired daily points a correlation needs.
// Below this the sample is too small to band meaningfully.
const MinDays = 14

// outlierZ is the z-score beyond which a day's spend is dropped before
// correlating.
const outlierZ = 3.0

// Correlate measures how paid spend co-moves with organic sales over
// paired daily points. Pure; no I/O. Days whose spend sits three or
// more standard deviations from the mean are removed first so a single
// launch-day spike cannot manufacture a correlation.
//
// Too little data is not an error: the caller gets a null correlation
// at Weak confidence with an insight explaining the shortfall, so a
// sparse brand is distinguishable from one with a genuine zero signal.
func Correlate(points []models.DailySpendPoint) *models.MMMResult {
	if len(points) < MinDays {
		return insufficientData(len(points), 0)
	}

	filtered, removed := rejectSpendOutliers(points)
	if len(filtered) < 2 {
		return insufficientData(len(filtered), removed)
	}

	spend := make([]float64, len(filtered))
	organic := make([]float64, len(filtered))
	for i, p := range filtered {
		spend[i] = p.Spend
		organic[i] = p.OrganicSales
	}

	r := pearson(spend, organic)

	result := &models.MMMResult{
		CorrelationScore: r,
		ConfidenceLevel:  confidence(r),
		DaysAnalyzed:     len(filtered),
		OutliersRemoved:  removed,
	}
	if r > 0 {
		result.EstimatedOrganicLift = r * r * 100
	}
	result.Insight = insight(r, result.EstimatedOrganicLift)
	return result
}

// insufficientData is the defined low-data response: null correlation,
// Weak confidence, zero lift.
func insufficientData(days, removed int) *models.MMMResult {
	return &models.MMMResult{
		ConfidenceLevel: models.ConfidenceWeak,
		DaysAnalyzed:    days,
		OutliersRemoved: removed,
		Insight:         fmt.Sprintf("Not enough paired history to correlate; %d days available, %d required.", days, MinDays),
	}
}

// rejectSpendOutliers drops points whose spend z-score is at or beyond
// outlierZ. When spend has zero variance there is nothing to reject.
func rejectSpendOutliers(points []models.DailySpendPoint) ([]models.DailySpendPoint, int) {
	spend := make([]float64, len(points))
	for i, p := range points {
		spend[i] = p.Spend
	}
	mean, stddev := meanStddev(spend)
	if stddev == 0 {
		return points, 0
	}

	kept := make([]models.DailySpendPoint, 0, len(points))
	for _, p := range points {
		if math.Abs(p.Spend-mean)/stddev >= outlierZ {
			continue
		}
		kept = append(kept, p)
	}
	return kept, len(points) - len(kept)
}

// pearson computes the Pearson correlation coefficient. Zero variance in
// either series yields 0, a null correlation rather than an error.
func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	num := n*sumXY - sumX*sumY
	den := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if den == 0 {
		return 0
	}
	return num / den
}

func confidence(r float64) models.ConfidenceLevel {
	abs := math.Abs(r)
	switch {
	case abs > 0.7:
		return models.ConfidenceStrong
	case abs > 0.4:
		return models.ConfidenceModerate
	default:
		return models.ConfidenceWeak
	}
}

// insight renders the one-line interpretation of the score.
func insight(r, lift float64) string {
	abs := math.Abs(r)
	switch {
	case r == 0:
		return "No measurable relationship between paid spend and organic sales."
	case r > 0 && abs > 0.7:
		return fmt.Sprintf("Paid spend strongly tracks organic sales; roughly %.0f%% of organic variation moves with spend.", lift)
	case r > 0 && abs > 0.4:
		return fmt.Sprintf("Paid spend moderately tracks organic sales; roughly %.0f%% of organic variation moves with spend.", lift)
	case r > 0:
		return "Paid spend weakly tracks organic sales; the halo effect is small at current levels."
	case abs > 0.7:
		return "Organic sales fall strongly as paid spend rises; paid may be cannibalizing organic demand."
	case abs > 0.4:
		return "Organic sales dip moderately as paid spend rises; watch for cannibalization."
	default:
		return "Organic sales drift slightly against paid spend; no actionable relationship."
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
