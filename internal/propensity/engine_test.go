package propensity

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

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine(
		storage.NewInMemoryJourneyStore(),
		storage.NewInMemoryPropensityCache(),
		config.PropensityConfig{},
		zap.NewNop(),
		nil,
	)
	e.now = func() time.Time { return testNow }
	return e
}

func event(eventType string, age time.Duration) models.JourneyEvent {
	return models.JourneyEvent{
		ID:        eventType + age.String(),
		LeadID:    "lead-1",
		Type:      eventType,
		Timestamp: testNow.Add(-age),
	}
}

func TestScoreNoEvents(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score("lead-1", nil)
	assert.Zero(t, result.Score)
	assert.Equal(t, models.SegmentCold, result.Segment)
	assert.Equal(t, []string{"No events recorded"}, result.Reasoning)
}

func TestScoreEventWeights(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name     string
		events   []models.JourneyEvent
		expected float64
	}{
		{"single page view", []models.JourneyEvent{event(models.EventPageView, 48 * time.Hour)}, 0.1},
		{"single click", []models.JourneyEvent{event(models.EventClick, 48 * time.Hour)}, 0.2},
		{"form submit", []models.JourneyEvent{event(models.EventFormSubmit, 48 * time.Hour)}, 0.5},
		{"unknown type", []models.JourneyEvent{event("webinar_attended", 48 * time.Hour)}, 0.05},
		{
			"mixed",
			[]models.JourneyEvent{
				event(models.EventPageView, 72 * time.Hour),
				event(models.EventClick, 48 * time.Hour),
				event(models.EventFormSubmit, 30 * time.Hour),
			},
			0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Score("lead-1", tt.events)
			assert.InDelta(t, tt.expected, result.Score, 1e-9)
		})
	}
}

func TestScoreRecencyBoost(t *testing.T) {
	engine := newTestEngine()

	// Click inside the 24h window gets the 1.5x multiplier
	result := engine.Score("lead-1", []models.JourneyEvent{event(models.EventClick, 2 * time.Hour)})
	assert.InDelta(t, 0.3, result.Score, 1e-9)
}

func TestScoreCapsAtOne(t *testing.T) {
	engine := newTestEngine()

	events := []models.JourneyEvent{
		event(models.EventPurchase, 2*time.Hour),
		event(models.EventPurchase, 3*time.Hour),
		event(models.EventFormSubmit, 4*time.Hour),
	}
	result := engine.Score("lead-1", events)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.Equal(t, models.SegmentHot, result.Segment)
}

func TestScoreInactivityPenalty(t *testing.T) {
	engine := newTestEngine()

	// Strong history, but the latest event is 10 days old
	events := []models.JourneyEvent{
		event(models.EventPurchase, 12*24*time.Hour),
		event(models.EventFormSubmit, 10*24*time.Hour),
	}
	result := engine.Score("lead-1", events)
	// (1.0 + 0.5) capped at 1.0, then halved
	assert.InDelta(t, 0.5, result.Score, 1e-9)
	assert.Equal(t, models.SegmentWarm, result.Segment)
	assert.Contains(t, result.Reasoning, "Inactivity penalty applied, no events in over 7 days")
}

func TestSegmentThresholds(t *testing.T) {
	engine := newTestEngine()

	assert.Equal(t, models.SegmentHot, engine.segment(0.7))
	assert.Equal(t, models.SegmentHot, engine.segment(0.95))
	assert.Equal(t, models.SegmentWarm, engine.segment(0.3))
	assert.Equal(t, models.SegmentWarm, engine.segment(0.69))
	assert.Equal(t, models.SegmentCold, engine.segment(0.29))
	assert.Equal(t, models.SegmentCold, engine.segment(0))
}

func TestScoreLeadPersistsBestEffort(t *testing.T) {
	journey := storage.NewInMemoryJourneyStore()
	cache := storage.NewInMemoryPropensityCache()
	engine := NewEngine(journey, cache, config.PropensityConfig{}, zap.NewNop(), nil)
	engine.now = func() time.Time { return testNow }

	ctx := context.Background()
	journey.PutLead(&models.Lead{ID: "lead-1", BrandID: "brand-1"})
	journey.AppendEvent(event(models.EventFormSubmit, 2*time.Hour))

	result, err := engine.ScoreLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, result.Score, 1e-9)
	assert.Equal(t, models.SegmentHot, result.Segment)

	// Cache and lead record updates land asynchronously
	require.Eventually(t, func() bool {
		cached, err := cache.Get(ctx, "lead-1")
		if err != nil || cached == nil {
			return false
		}
		lead, err := journey.GetLead(ctx, "lead-1")
		return err == nil && lead.Segment == models.SegmentHot
	}, time.Second, 10*time.Millisecond)
}
