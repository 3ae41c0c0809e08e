package models

import (
	"time"
)

// ===========================================
// MEDIA MIX / CORRELATION
// ===========================================

// ConfidenceLevel bands a correlation score.
type ConfidenceLevel string

const (
	ConfidenceStrong   ConfidenceLevel = "Strong"
	ConfidenceModerate ConfidenceLevel = "Moderate"
	ConfidenceWeak     ConfidenceLevel = "Weak"
)

// DailySpendPoint is one day of paired spend and organic sales.
type DailySpendPoint struct {
	Date         time.Time `json:"date"`
	Spend        float64   `json:"spend"`
	OrganicSales float64   `json:"organic_sales"`
}

// MMMResult is the spend-vs-organic correlation outcome. Transient;
// computed on demand.
type MMMResult struct {
	CorrelationScore     float64         `json:"correlation_score"`
	ConfidenceLevel      ConfidenceLevel `json:"confidence_level"`
	EstimatedOrganicLift float64         `json:"estimated_organic_lift"` // percent
	Insight              string          `json:"insight"`
	DaysAnalyzed         int             `json:"days_analyzed"`
	OutliersRemoved      int             `json:"outliers_removed"`
}

// ===========================================
// ANOMALY ALERTS
// ===========================================

// AlertSeverity grades how far a metric drifted from its baseline.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// AlertStatus is the operator-driven alert lifecycle state.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// AlertContext carries the numbers and identifiers downstream routing
// needs to act on an alert.
type AlertContext struct {
	CurrentValue  float64  `json:"current_value"`
	ExpectedValue float64  `json:"expected_value"`
	Deviation     float64  `json:"deviation"` // standard deviations from mean
	EntityID      string   `json:"entity_id"`
	EntityName    string   `json:"entity_name,omitempty"`
	Platform      Platform `json:"platform"`
}

// AnomalyAlert flags a monitored metric drifting outside its historical
// band. Created by the anomaly engine; status transitions come from
// operator action.
type AnomalyAlert struct {
	ID         string        `json:"id"`
	BrandID    string        `json:"brand_id"`
	Severity   AlertSeverity `json:"severity"`
	MetricType string        `json:"metric_type"` // cpc, ctr, spend
	Context    AlertContext  `json:"context"`
	Status     AlertStatus   `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}
