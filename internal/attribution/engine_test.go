package attribution

import (
	"testing"
	"time"

	"github.com/radiusdt/vector-attribution/internal/config"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTouchpoints(n int, spacing time.Duration, base time.Time) []models.TouchpointRecord {
	tps := make([]models.TouchpointRecord, n)
	for i := 0; i < n; i++ {
		tps[i] = models.TouchpointRecord{
			Source:    "meta",
			Medium:    "paid",
			Campaign:  "launch",
			Timestamp: base.Add(time.Duration(i) * spacing),
		}
	}
	return tps
}

func weightSum(points []models.TouchpointRecord) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Weight
	}
	return sum
}

func TestAttributeWeightsSumToOne(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conversion := base.Add(30 * 24 * time.Hour)

	allModels := []models.AttributionModel{
		models.ModelLinear,
		models.ModelTimeDecay,
		models.ModelUShape,
		models.ModelLastTouch,
		models.ModelFirstTouch,
	}

	for _, model := range allModels {
		for _, n := range []int{1, 2, 3, 10, 50} {
			points := engine.Attribute(makeTouchpoints(n, time.Hour, base), model, conversion)
			require.Len(t, points, n, "model %s n=%d", model, n)
			assert.InDelta(t, 1.0, weightSum(points), 1e-6, "model %s n=%d", model, n)
		}
	}
}

func TestAttributeNoTouchpoints(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})

	points := engine.Attribute(nil, models.ModelLinear, time.Now())
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestAttributeFiltersChannellessTouchpoints(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tps := []models.TouchpointRecord{
		{Timestamp: base}, // no channel identity
		{Source: "google", Timestamp: base.Add(time.Hour)},
		{Timestamp: base.Add(2 * time.Hour)},
	}

	points := engine.Attribute(tps, models.ModelLinear, base.Add(24*time.Hour))
	require.Len(t, points, 1)
	assert.Equal(t, "google", points[0].Source)
	assert.InDelta(t, 1.0, points[0].Weight, 1e-9)
}

func TestAttributeOnlyChannellessTouchpoints(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Now()

	tps := []models.TouchpointRecord{{Timestamp: base}, {Timestamp: base.Add(time.Minute)}}
	points := engine.Attribute(tps, models.ModelUShape, base.Add(time.Hour))
	assert.Empty(t, points)
}

func TestLinearEqualSplit(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	points := engine.Attribute(makeTouchpoints(4, time.Hour, base), models.ModelLinear, base.Add(24*time.Hour))
	require.Len(t, points, 4)
	for _, p := range points {
		assert.InDelta(t, 0.25, p.Weight, 1e-9)
	}
}

func TestUShapeDistribution(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	conversion := base.Add(24 * time.Hour)

	tests := []struct {
		n        int
		expected []float64
	}{
		{1, []float64{1.0}},
		{2, []float64{0.5, 0.5}},
		{3, []float64{0.4, 0.2, 0.4}},
		{4, []float64{0.4, 0.1, 0.1, 0.4}},
	}

	for _, tt := range tests {
		points := engine.Attribute(makeTouchpoints(tt.n, time.Hour, base), models.ModelUShape, conversion)
		require.Len(t, points, tt.n)
		for i, want := range tt.expected {
			assert.InDelta(t, want, points[i].Weight, 1e-9, "n=%d position %d", tt.n, i)
		}
	}
}

func TestTimeDecayHalvesPerWeek(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{HalfLife: 7 * 24 * time.Hour})
	conversion := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tps := []models.TouchpointRecord{
		{Source: "meta", Timestamp: conversion.Add(-7 * 24 * time.Hour)},
		{Source: "google", Timestamp: conversion},
	}

	points := engine.Attribute(tps, models.ModelTimeDecay, conversion)
	require.Len(t, points, 2)

	// One half-life old carries half the raw weight, so after
	// normalization the split is 1/3 vs 2/3.
	assert.InDelta(t, 1.0/3.0, points[0].Weight, 1e-9)
	assert.InDelta(t, 2.0/3.0, points[1].Weight, 1e-9)
}

func TestTimeDecayRecentOutweighsOld(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	conversion := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	base := conversion.Add(-20 * 24 * time.Hour)

	points := engine.Attribute(makeTouchpoints(5, 4*24*time.Hour, base), models.ModelTimeDecay, conversion)
	require.Len(t, points, 5)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].Weight, points[i-1].Weight)
	}
}

func TestPositionModels(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	conversion := base.Add(24 * time.Hour)

	last := engine.Attribute(makeTouchpoints(3, time.Hour, base), models.ModelLastTouch, conversion)
	require.Len(t, last, 3)
	assert.Equal(t, []float64{0, 0, 1}, []float64{last[0].Weight, last[1].Weight, last[2].Weight})

	first := engine.Attribute(makeTouchpoints(3, time.Hour, base), models.ModelFirstTouch, conversion)
	require.Len(t, first, 3)
	assert.Equal(t, []float64{1, 0, 0}, []float64{first[0].Weight, first[1].Weight, first[2].Weight})
}

func TestAttributeSortsByTimestamp(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tps := []models.TouchpointRecord{
		{Source: "late", Timestamp: base.Add(2 * time.Hour)},
		{Source: "early", Timestamp: base},
		{Source: "middle", Timestamp: base.Add(time.Hour)},
	}

	points := engine.Attribute(tps, models.ModelFirstTouch, base.Add(24*time.Hour))
	require.Len(t, points, 3)
	assert.Equal(t, "early", points[0].Source)
	assert.InDelta(t, 1.0, points[0].Weight, 1e-9)
}

func TestUnknownModelFallsBackToLinear(t *testing.T) {
	engine := NewEngine(config.AttributionConfig{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	points := engine.Attribute(makeTouchpoints(2, time.Hour, base), models.AttributionModel("bogus"), base.Add(time.Hour))
	require.Len(t, points, 2)
	assert.InDelta(t, 0.5, points[0].Weight, 1e-9)
	assert.InDelta(t, 0.5, points[1].Weight, 1e-9)
}
