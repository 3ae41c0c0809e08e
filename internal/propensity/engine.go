package propensity

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

// Per-event base weights. Unrecognized event types still contribute a
// small nonzero signal instead of being dropped.
const (
	weightPageView   = 0.1
	weightClick      = 0.2
	weightFormSubmit = 0.5
	weightPurchase   = 1.0
	weightUnknown    = 0.05
)

// Engine scores purchase propensity from a lead's event history. Scores
// are recomputed from events on every request; the cache and the lead
// record only hold best-effort copies.
type Engine struct {
	journey storage.JourneyStore
	cache   storage.PropensityCache
	cfg     config.PropensityConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a propensity engine.
func NewEngine(
	journey storage.JourneyStore,
	cache storage.PropensityCache,
	cfg config.PropensityConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Engine {
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = 24 * time.Hour
	}
	if cfg.RecencyMultiplier <= 0 {
		cfg.RecencyMultiplier = 1.5
	}
	if cfg.InactivityWindow <= 0 {
		cfg.InactivityWindow = 7 * 24 * time.Hour
	}
	if cfg.InactivityPenalty <= 0 {
		cfg.InactivityPenalty = 0.5
	}
	if cfg.HotThreshold <= 0 {
		cfg.HotThreshold = 0.7
	}
	if cfg.WarmThreshold <= 0 {
		cfg.WarmThreshold = 0.3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	return &Engine{
		journey: journey,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// ScoreLead computes the lead's current propensity from its full event
// history, then writes the result to the cache and back onto the lead
// record in the background. Both writes are best-effort and never fail
// the scoring call.
func (e *Engine) ScoreLead(ctx context.Context, leadID string) (*models.PropensityResult, error) {
	events, err := e.journey.ListEventsByLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead events: %w", err)
	}

	result := e.Score(leadID, events)
	if e.metrics != nil {
		e.metrics.RecordPropensity(string(result.Segment))
	}

	go e.persist(result)
	return result, nil
}

// Score is the pure scoring function: sum per-event weights, boost
// events inside the recency window, cap at 1.0, then halve when the
// lead has gone quiet past the inactivity window.
func (e *Engine) Score(leadID string, events []models.JourneyEvent) *models.PropensityResult {
	now := e.now()
	result := &models.PropensityResult{
		LeadID:     leadID,
		ComputedAt: now.UTC(),
	}

	if len(events) == 0 {
		result.Segment = models.SegmentCold
		result.Reasoning = []string{"No events recorded"}
		return result
	}

	var (
		score       float64
		recentCount int
		latest      time.Time
		counts      = map[string]int{}
	)
	for _, ev := range events {
		w := eventWeight(ev.Type)
		if now.Sub(ev.Timestamp) < e.cfg.RecencyWindow {
			w *= e.cfg.RecencyMultiplier
			recentCount++
		}
		score += w
		counts[ev.Type]++
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
	}

	reasoning := []string{fmt.Sprintf("%d events scored", len(events))}
	if n := counts[models.EventPurchase]; n > 0 {
		reasoning = append(reasoning, fmt.Sprintf("%d purchase events", n))
	}
	if n := counts[models.EventFormSubmit]; n > 0 {
		reasoning = append(reasoning, fmt.Sprintf("%d form submissions", n))
	}
	if recentCount > 0 {
		reasoning = append(reasoning, fmt.Sprintf("%d events in the last 24h boosted", recentCount))
	}

	if score > 1.0 {
		score = 1.0
	}
	if now.Sub(latest) > e.cfg.InactivityWindow {
		score *= e.cfg.InactivityPenalty
		reasoning = append(reasoning, "Inactivity penalty applied, no events in over 7 days")
	}

	result.Score = score
	result.Segment = e.segment(score)
	result.Reasoning = reasoning
	return result
}

func (e *Engine) segment(score float64) models.Segment {
	switch {
	case score >= e.cfg.HotThreshold:
		return models.SegmentHot
	case score >= e.cfg.WarmThreshold:
		return models.SegmentWarm
	default:
		return models.SegmentCold
	}
}

// persist writes the score to the cache and onto the lead record.
// Failures are logged and swallowed.
func (e *Engine) persist(result *models.PropensityResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.cache != nil {
		if err := e.cache.Put(ctx, result, e.cfg.CacheTTL); err != nil {
			e.logger.Warn("failed to cache propensity result",
				zap.Error(err),
				zap.String("lead_id", result.LeadID),
			)
			if e.metrics != nil {
				e.metrics.RecordPersistFailure("propensity_cache")
			}
		}
	}
	if err := e.journey.UpdateLeadPropensity(ctx, result.LeadID, result.Score, result.Segment); err != nil {
		e.logger.Warn("failed to update lead propensity",
			zap.Error(err),
			zap.String("lead_id", result.LeadID),
		)
		if e.metrics != nil {
			e.metrics.RecordPersistFailure("lead_propensity")
		}
	}
}

func eventWeight(eventType string) float64 {
	switch eventType {
	case models.EventPageView:
		return weightPageView
	case models.EventClick:
		return weightClick
	case models.EventFormSubmit:
		return weightFormSubmit
	case models.EventPurchase:
		return weightPurchase
	default:
		return weightUnknown
	}
}
