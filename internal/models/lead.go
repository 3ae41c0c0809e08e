package models

import (
	"time"
)

// ===========================================
// LEAD & JOURNEY EVENTS
// ===========================================

// Lead is a CRM lead record as read from the journey collaborator. The
// propensity fields are non-exclusive: the scorer merges them onto the
// record best-effort, everything else belongs to the CRM side.
type Lead struct {
	ID              string    `json:"id"`
	BrandID         string    `json:"brand_id"`
	Email           string    `json:"email,omitempty"`
	Segment         Segment   `json:"segment,omitempty"`
	PropensityScore float64   `json:"propensity_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Journey event types carrying propensity weight.
const (
	EventPageView   = "page_view"
	EventClick      = "click"
	EventFormSubmit = "form_submit"
	EventPurchase   = "purchase"
)

// JourneyEvent is a typed, timestamped lead interaction. Payload carries
// UTM fields, platform click identifiers and transport metadata as flat
// string pairs (utm_source, utm_medium, utm_campaign, fbclid, gclid,
// ttclid, ip, revenue).
type JourneyEvent struct {
	ID        string            `json:"id"`
	LeadID    string            `json:"lead_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// Transaction is a conversion with monetary value.
type Transaction struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	BrandID   string    `json:"brand_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// ===========================================
// PROPENSITY
// ===========================================

// Segment is a propensity bucket used as the LTV cohort unit.
type Segment string

const (
	SegmentHot  Segment = "hot"
	SegmentWarm Segment = "warm"
	SegmentCold Segment = "cold"
)

// Segments lists the fixed cohort segments in estimation order.
var Segments = []Segment{SegmentHot, SegmentWarm, SegmentCold}

// PropensityResult is a derived purchase-propensity score. Recomputed
// from event history on each request; persisted copies are best-effort
// caches and may trail the latest computation.
type PropensityResult struct {
	LeadID     string    `json:"lead_id"`
	Score      float64   `json:"score"`
	Segment    Segment   `json:"segment"`
	Reasoning  []string  `json:"reasoning"`
	ComputedAt time.Time `json:"computed_at"`
}

// ===========================================
// LTV
// ===========================================

// LTVProjection holds forward revenue per lead at fixed horizons.
type LTVProjection struct {
	M1  float64 `json:"m1"`
	M3  float64 `json:"m3"`
	M6  float64 `json:"m6"`
	M12 float64 `json:"m12"`
}

// LTVEstimation is one segment cohort's lifetime-value projection. One
// per segment per run, overwritten without historical versioning.
type LTVEstimation struct {
	CohortID         string        `json:"cohort_id"`
	BrandID          string        `json:"brand_id"`
	Segment          Segment       `json:"segment"`
	LeadsInCohort    int           `json:"leads_in_cohort"`
	TotalRevenue     float64       `json:"total_revenue"`
	AvgRevenuePerLead float64      `json:"avg_revenue_per_lead"`
	ProjectedLTV     LTVProjection `json:"projected_ltv"`
	GrowthMultiplier LTVProjection `json:"growth_multiplier"`
	ConfidenceScore  float64       `json:"confidence_score"`
	EstimatedAt      time.Time     `json:"estimated_at"`
}
