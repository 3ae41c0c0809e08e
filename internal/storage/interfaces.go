package storage

import (
	"context"
	"time"

	"github.com/radiusdt/vector-attribution/internal/models"
)

// =============================================
// LEDGER STORE
// =============================================

// LedgerStore persists the per-lead attribution ledger and the reverse
// index from platform click ids to leads.
type LedgerStore interface {
	GetLedger(ctx context.Context, leadID string) (*models.AttributionLedger, error)
	SaveLedger(ctx context.Context, ledger *models.AttributionLedger) error
	FindLeadByExternalID(ctx context.Context, platform models.Platform, externalID string) (string, error)
}

// =============================================
// JOURNEY STORE
// =============================================

// JourneyStore reads lead, event and transaction records owned by the
// journey collaborator and merges propensity fields back onto leads.
type JourneyStore interface {
	GetLead(ctx context.Context, leadID string) (*models.Lead, error)
	ListEventsByLead(ctx context.Context, leadID string) ([]models.JourneyEvent, error)
	// ListTransactionsByLeads resolves transactions for a batch of lead
	// ids. Callers must keep batches at or under the store's bulk-lookup
	// ceiling; implementations may reject oversized batches.
	ListTransactionsByLeads(ctx context.Context, leadIDs []string) ([]models.Transaction, error)
	ListLeadIDsBySegment(ctx context.Context, brandID string, segment models.Segment) ([]string, error)
	UpdateLeadPropensity(ctx context.Context, leadID string, score float64, segment models.Segment) error
}

// =============================================
// METRIC STORE
// =============================================

// MetricStore holds raw performance-metric records and serves the
// history series behind anomaly detection and spend correlation.
type MetricStore interface {
	SaveRawMetrics(ctx context.Context, records []models.RawMetricRecord) error
	ListRawMetrics(ctx context.Context, brandID string, start, end time.Time) ([]models.RawMetricRecord, error)
	// MetricHistory returns the trailing per-day values of one metric
	// (spend, cpc, ctr) for an entity, oldest first.
	MetricHistory(ctx context.Context, entityID, metric string, days int) ([]models.MetricPoint, error)
	// DailySpendSeries returns total daily spend for a brand across all
	// platforms, oldest first.
	DailySpendSeries(ctx context.Context, brandID string, start, end time.Time) ([]models.MetricPoint, error)
}

// =============================================
// RESULT STORES
// =============================================

// ReportStore persists cross-channel reports keyed by their
// deterministic id.
type ReportStore interface {
	UpsertReport(ctx context.Context, report *models.CrossChannelReport) error
	GetReport(ctx context.Context, id string) (*models.CrossChannelReport, error)
}

// ResultStore persists attribution results keyed by transaction id.
type ResultStore interface {
	SaveAttributionResult(ctx context.Context, result *models.AttributionResult) error
	GetAttributionResult(ctx context.Context, transactionID string) (*models.AttributionResult, error)
}

// LTVStore persists per-segment cohort estimations, one per segment per
// run.
type LTVStore interface {
	UpsertEstimation(ctx context.Context, est *models.LTVEstimation) error
	ListEstimations(ctx context.Context, brandID string) ([]*models.LTVEstimation, error)
}

// AlertStore persists anomaly alerts and their operator-driven status
// transitions.
type AlertStore interface {
	SaveAlerts(ctx context.Context, alerts []models.AnomalyAlert) error
	ListAlerts(ctx context.Context, brandID string, status models.AlertStatus) ([]models.AnomalyAlert, error)
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) error
}

// =============================================
// CACHES & COUNTERS
// =============================================

// PropensityCache is the best-effort store for computed propensity
// results. Writes are fire-and-forget from the scorer's point of view.
type PropensityCache interface {
	Put(ctx context.Context, result *models.PropensityResult, ttl time.Duration) error
	Get(ctx context.Context, leadID string) (*models.PropensityResult, error)
}

// OrganicSalesCounter accumulates daily organic sales per brand, the
// non-paid half of the media-mix correlation input.
type OrganicSalesCounter interface {
	IncrDaily(ctx context.Context, brandID string, day time.Time, amount float64) error
	DailySeries(ctx context.Context, brandID string, start, end time.Time) ([]models.MetricPoint, error)
}
