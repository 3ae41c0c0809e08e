package attribution

import (
	"math"
	"sort"
	"time"

	"github.com/radiusdt/vector-attribution/internal/config"
	"github.com/radiusdt/vector-attribution/internal/models"
)

// Engine computes per-touchpoint credit weights. All methods are pure:
// deterministic output, no side effects, no I/O.
type Engine struct {
	halfLife   time.Duration
	edgeWeight float64
}

// NewEngine creates an attribution engine with the given model parameters.
func NewEngine(cfg config.AttributionConfig) *Engine {
	halfLife := cfg.HalfLife
	if halfLife <= 0 {
		halfLife = 7 * 24 * time.Hour
	}
	edge := cfg.UShapeEdgeWeight
	if edge <= 0 || edge >= 0.5 {
		edge = 0.4
	}
	return &Engine{halfLife: halfLife, edgeWeight: edge}
}

// Attribute splits conversion credit across the given touchpoints under
// the requested model. Touchpoints without any channel identity are
// filtered out first. Zero qualifying touchpoints yields an empty slice,
// which callers must treat as "no attribution data" rather than a
// failure.
func (e *Engine) Attribute(touchpoints []models.TouchpointRecord, model models.AttributionModel, conversionTime time.Time) []models.TouchpointRecord {
	points := qualify(touchpoints)
	if len(points) == 0 {
		return []models.TouchpointRecord{}
	}

	var raw []float64
	switch model {
	case models.ModelTimeDecay:
		raw = e.timeDecayWeights(points, conversionTime)
	case models.ModelUShape:
		raw = e.uShapeWeights(len(points))
	case models.ModelLastTouch:
		raw = positionWeights(len(points), len(points)-1)
	case models.ModelFirstTouch:
		raw = positionWeights(len(points), 0)
	default:
		raw = linearWeights(len(points))
	}

	normalize(raw)
	for i := range points {
		points[i].Weight = raw[i]
	}
	return points
}

// qualify drops touchpoints with no channel identity and returns the
// remainder ordered by time.
func qualify(touchpoints []models.TouchpointRecord) []models.TouchpointRecord {
	points := make([]models.TouchpointRecord, 0, len(touchpoints))
	for _, tp := range touchpoints {
		if tp.HasChannelData() {
			points = append(points, tp)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

func linearWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	return weights
}

// timeDecayWeights applies half-life decay: a touchpoint one half-life
// before the conversion carries half the raw weight of a touchpoint at
// the conversion moment.
func (e *Engine) timeDecayWeights(points []models.TouchpointRecord, conversionTime time.Time) []float64 {
	weights := make([]float64, len(points))
	for i, tp := range points {
		age := conversionTime.Sub(tp.Timestamp)
		weights[i] = math.Pow(2, -age.Hours()/e.halfLife.Hours())
	}
	return weights
}

// uShapeWeights credits the first and last touch most. n=1 takes the
// whole credit, n=2 splits evenly, n>=3 gives each edge the configured
// share and spreads the rest across the middle.
func (e *Engine) uShapeWeights(n int) []float64 {
	weights := make([]float64, n)
	switch n {
	case 1:
		weights[0] = 1.0
	case 2:
		weights[0] = 0.5
		weights[1] = 0.5
	default:
		middle := (1.0 - 2*e.edgeWeight) / float64(n-2)
		for i := range weights {
			weights[i] = middle
		}
		weights[0] = e.edgeWeight
		weights[n-1] = e.edgeWeight
	}
	return weights
}

func positionWeights(n, credited int) []float64 {
	weights := make([]float64, n)
	weights[credited] = 1.0
	return weights
}

// normalize rescales raw weights to sum to exactly 1.0, guarding against
// floating-point drift in the per-model formulas.
func normalize(weights []float64) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return
	}
	for i := range weights {
		weights[i] /= sum
	}
}
