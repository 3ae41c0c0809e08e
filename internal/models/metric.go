package models

import (
	"time"
)

// ===========================================
// PLATFORMS
// ===========================================

// Platform identifies an ad platform in canonical metrics and reports.
type Platform string

const (
	PlatformMeta       Platform = "meta"
	PlatformGoogle     Platform = "google"
	PlatformTikTok     Platform = "tiktok"
	PlatformLinkedIn   Platform = "linkedin"
	PlatformEmail      Platform = "email"
	PlatformAggregated Platform = "aggregated"
)

// KnownPlatforms are the per-platform buckets every cross-channel report
// carries, present even when all-zero.
var KnownPlatforms = []Platform{
	PlatformMeta,
	PlatformGoogle,
	PlatformTikTok,
	PlatformLinkedIn,
	PlatformEmail,
}

// ===========================================
// RAW METRIC SHAPES
// ===========================================

// RawMetricRecord is a performance-metric document as written by the
// collector jobs. Two on-disk generations exist: the legacy shape sets
// Platform+Metrics, the current shape sets Source+Data. Exactly one of
// the two must be present.
type RawMetricRecord struct {
	ID         string    `json:"id"`
	BrandID    string    `json:"brand_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Level      string    `json:"level,omitempty"` // account, campaign, adset
	Timestamp  time.Time `json:"timestamp"`

	// Legacy shape
	Platform string          `json:"platform,omitempty"`
	Metrics  *UnifiedMetrics `json:"metrics,omitempty"`

	// Current shape
	Source string          `json:"source,omitempty"`
	Data   *CurrentMetrics `json:"data,omitempty"`
}

// CurrentMetrics is the payload of the current raw shape. It does not
// carry clicks or impressions.
type CurrentMetrics struct {
	Spend       float64 `json:"spend"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPA         float64 `json:"cpa"`
	ROAS        float64 `json:"roas"`
}

// ===========================================
// CANONICAL METRICS
// ===========================================

// UnifiedMetrics is the canonical per-entity metric set.
type UnifiedMetrics struct {
	Spend       float64 `json:"spend"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPA         float64 `json:"cpa"`
	ROAS        float64 `json:"roas"`
}

// CanonicalMetric is the one normalized shape every consumer reads.
// Produced only by the metric adapter.
type CanonicalMetric struct {
	BrandID    string         `json:"brand_id"`
	Platform   Platform       `json:"platform"`
	ExternalID string         `json:"external_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Level      string         `json:"level,omitempty"`
	Metrics    UnifiedMetrics `json:"metrics"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ===========================================
// CROSS-CHANNEL REPORT
// ===========================================

// ReportPeriod is the window a report covers.
type ReportPeriod struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Granularity string    `json:"granularity"` // daily, weekly, monthly
}

// BlendedTotals are the cross-platform totals of a report.
type BlendedTotals struct {
	UnifiedMetrics
	BlendedROAS float64 `json:"blended_roas"`
	BlendedCPA  float64 `json:"blended_cpa"`
}

// ChannelBreakdown is one platform's slice of a cross-channel report.
type ChannelBreakdown struct {
	Metrics            UnifiedMetrics `json:"metrics"`
	ShareOfSpend       float64        `json:"share_of_spend"`       // percent
	ShareOfConversions float64        `json:"share_of_conversions"` // percent
}

// CrossChannelReport is the consolidated blended report per brand and
// period. The ID is deterministic (brand+period) so repeated runs for
// the same window overwrite instead of duplicating.
type CrossChannelReport struct {
	ID          string                        `json:"id"`
	BrandID     string                        `json:"brand_id"`
	Period      ReportPeriod                  `json:"period"`
	Totals      BlendedTotals                 `json:"totals"`
	Channels    map[Platform]ChannelBreakdown `json:"channels"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// MetricPoint is one day of a metric history series.
type MetricPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}
