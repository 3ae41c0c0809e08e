package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/vector-attribution/internal/models"
)

// maxLeadBatch is the hard ceiling on lead ids per bulk transaction
// lookup. Larger batches are a caller bug, not something to silently
// split here.
const maxLeadBatch = 10

// =============================================
// LEDGER STORE
// =============================================

// PostgresLedgerStore implements LedgerStore using PostgreSQL. The
// touchpoint history is a JSONB document; external ids are flattened
// into indexed columns for the reverse lookup.
type PostgresLedgerStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLedgerStore(pool *pgxpool.Pool) *PostgresLedgerStore {
	return &PostgresLedgerStore{pool: pool}
}

func (s *PostgresLedgerStore) GetLedger(ctx context.Context, leadID string) (*models.AttributionLedger, error) {
	var l models.AttributionLedger
	var touchpointsJSON []byte
	var meta, google, tiktok, crm *string

	err := s.pool.QueryRow(ctx, `
		SELECT lead_id, external_meta, external_google, external_tiktok, external_crm,
		       touchpoints, last_sync_at
		FROM attribution_ledgers WHERE lead_id = $1
	`, leadID).Scan(&l.LeadID, &meta, &google, &tiktok, &crm, &touchpointsJSON, &l.LastSyncAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	if meta != nil {
		l.ExternalIDs.Meta = *meta
	}
	if google != nil {
		l.ExternalIDs.Google = *google
	}
	if tiktok != nil {
		l.ExternalIDs.TikTok = *tiktok
	}
	if crm != nil {
		l.ExternalIDs.CRM = *crm
	}

	if len(touchpointsJSON) > 0 {
		if err := json.Unmarshal(touchpointsJSON, &l.Touchpoints); err != nil {
			return nil, fmt.Errorf("failed to parse touchpoints: %w", err)
		}
	}

	return &l, nil
}

func (s *PostgresLedgerStore) SaveLedger(ctx context.Context, ledger *models.AttributionLedger) error {
	touchpointsJSON, err := json.Marshal(ledger.Touchpoints)
	if err != nil {
		return fmt.Errorf("failed to marshal touchpoints: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO attribution_ledgers (
			lead_id, external_meta, external_google, external_tiktok, external_crm,
			touchpoints, last_sync_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lead_id) DO UPDATE SET
			external_meta = EXCLUDED.external_meta,
			external_google = EXCLUDED.external_google,
			external_tiktok = EXCLUDED.external_tiktok,
			external_crm = EXCLUDED.external_crm,
			touchpoints = EXCLUDED.touchpoints,
			last_sync_at = EXCLUDED.last_sync_at
	`,
		ledger.LeadID,
		nullString(ledger.ExternalIDs.Meta),
		nullString(ledger.ExternalIDs.Google),
		nullString(ledger.ExternalIDs.TikTok),
		nullString(ledger.ExternalIDs.CRM),
		touchpointsJSON, ledger.LastSyncAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

func (s *PostgresLedgerStore) FindLeadByExternalID(ctx context.Context, platform models.Platform, externalID string) (string, error) {
	var column string
	switch platform {
	case models.PlatformMeta:
		column = "external_meta"
	case models.PlatformGoogle:
		column = "external_google"
	case models.PlatformTikTok:
		column = "external_tiktok"
	default:
		column = "external_crm"
	}

	var leadID string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT lead_id FROM attribution_ledgers WHERE %s = $1 LIMIT 1`, column),
		externalID,
	).Scan(&leadID)

	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find lead by external id: %w", err)
	}
	return leadID, nil
}

// =============================================
// JOURNEY STORE
// =============================================

// PostgresJourneyStore implements JourneyStore using PostgreSQL.
type PostgresJourneyStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJourneyStore(pool *pgxpool.Pool) *PostgresJourneyStore {
	return &PostgresJourneyStore{pool: pool}
}

func (s *PostgresJourneyStore) GetLead(ctx context.Context, leadID string) (*models.Lead, error) {
	var l models.Lead
	var email, segment *string

	err := s.pool.QueryRow(ctx, `
		SELECT id, brand_id, email, segment, propensity_score, created_at
		FROM leads WHERE id = $1
	`, leadID).Scan(&l.ID, &l.BrandID, &email, &segment, &l.PropensityScore, &l.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	if email != nil {
		l.Email = *email
	}
	if segment != nil {
		l.Segment = models.Segment(*segment)
	}
	return &l, nil
}

func (s *PostgresJourneyStore) ListEventsByLead(ctx context.Context, leadID string) ([]models.JourneyEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, lead_id, type, timestamp, payload
		FROM journey_events WHERE lead_id = $1 ORDER BY timestamp
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.JourneyEvent
	for rows.Next() {
		var ev models.JourneyEvent
		var payloadJSON []byte

		if err := rows.Scan(&ev.ID, &ev.LeadID, &ev.Type, &ev.Timestamp, &payloadJSON); err != nil {
			return nil, err
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &ev.Payload); err != nil {
				return nil, fmt.Errorf("failed to parse event payload: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *PostgresJourneyStore) ListTransactionsByLeads(ctx context.Context, leadIDs []string) ([]models.Transaction, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	if len(leadIDs) > maxLeadBatch {
		return nil, fmt.Errorf("transaction lookup batch of %d exceeds limit of %d", len(leadIDs), maxLeadBatch)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, lead_id, brand_id, amount, currency, timestamp
		FROM transactions WHERE lead_id = ANY($1)
	`, leadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.LeadID, &t.BrandID, &t.Amount, &t.Currency, &t.Timestamp); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}

func (s *PostgresJourneyStore) ListLeadIDsBySegment(ctx context.Context, brandID string, segment models.Segment) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM leads WHERE brand_id = $1 AND segment = $2
	`, brandID, string(segment))
	if err != nil {
		return nil, fmt.Errorf("failed to list segment leads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *PostgresJourneyStore) UpdateLeadPropensity(ctx context.Context, leadID string, score float64, segment models.Segment) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE leads SET propensity_score = $2, segment = $3 WHERE id = $1
	`, leadID, score, string(segment))
	if err != nil {
		return fmt.Errorf("failed to update lead propensity: %w", err)
	}
	return nil
}

// =============================================
// RESULT STORES
// =============================================

// PostgresReportStore implements ReportStore using PostgreSQL. Reports
// are stored whole as JSONB, keyed by their deterministic id.
type PostgresReportStore struct {
	pool *pgxpool.Pool
}

func NewPostgresReportStore(pool *pgxpool.Pool) *PostgresReportStore {
	return &PostgresReportStore{pool: pool}
}

func (s *PostgresReportStore) UpsertReport(ctx context.Context, report *models.CrossChannelReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cross_channel_reports (id, brand_id, period_start, period_end, doc, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			doc = EXCLUDED.doc,
			generated_at = EXCLUDED.generated_at
	`, report.ID, report.BrandID, report.Period.Start, report.Period.End, doc, report.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) GetReport(ctx context.Context, id string) (*models.CrossChannelReport, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT doc FROM cross_channel_reports WHERE id = $1
	`, id).Scan(&doc)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report models.CrossChannelReport
	if err := json.Unmarshal(doc, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// PostgresResultStore implements ResultStore using PostgreSQL.
type PostgresResultStore struct {
	pool *pgxpool.Pool
}

func NewPostgresResultStore(pool *pgxpool.Pool) *PostgresResultStore {
	return &PostgresResultStore{pool: pool}
}

func (s *PostgresResultStore) SaveAttributionResult(ctx context.Context, result *models.AttributionResult) error {
	points, err := json.Marshal(result.Points)
	if err != nil {
		return fmt.Errorf("failed to marshal attribution points: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO attribution_results (transaction_id, lead_id, model, points, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO UPDATE SET
			model = EXCLUDED.model,
			points = EXCLUDED.points,
			computed_at = EXCLUDED.computed_at
	`, result.TransactionID, result.LeadID, string(result.Model), points, result.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to save attribution result: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) GetAttributionResult(ctx context.Context, transactionID string) (*models.AttributionResult, error) {
	var r models.AttributionResult
	var model string
	var pointsJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT transaction_id, lead_id, model, points, computed_at
		FROM attribution_results WHERE transaction_id = $1
	`, transactionID).Scan(&r.TransactionID, &r.LeadID, &model, &pointsJSON, &r.ComputedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attribution result: %w", err)
	}

	r.Model = models.AttributionModel(model)
	if len(pointsJSON) > 0 {
		if err := json.Unmarshal(pointsJSON, &r.Points); err != nil {
			return nil, fmt.Errorf("failed to parse attribution points: %w", err)
		}
	}
	return &r, nil
}

// PostgresLTVStore implements LTVStore using PostgreSQL.
type PostgresLTVStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLTVStore(pool *pgxpool.Pool) *PostgresLTVStore {
	return &PostgresLTVStore{pool: pool}
}

func (s *PostgresLTVStore) UpsertEstimation(ctx context.Context, est *models.LTVEstimation) error {
	doc, err := json.Marshal(est)
	if err != nil {
		return fmt.Errorf("failed to marshal estimation: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ltv_estimations (cohort_id, brand_id, segment, doc, estimated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cohort_id) DO UPDATE SET
			doc = EXCLUDED.doc,
			estimated_at = EXCLUDED.estimated_at
	`, est.CohortID, est.BrandID, string(est.Segment), doc, est.EstimatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert estimation: %w", err)
	}
	return nil
}

func (s *PostgresLTVStore) ListEstimations(ctx context.Context, brandID string) ([]*models.LTVEstimation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM ltv_estimations WHERE brand_id = $1 ORDER BY segment
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimations: %w", err)
	}
	defer rows.Close()

	var ests []*models.LTVEstimation
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var est models.LTVEstimation
		if err := json.Unmarshal(doc, &est); err != nil {
			return nil, fmt.Errorf("failed to parse estimation: %w", err)
		}
		ests = append(ests, &est)
	}
	return ests, nil
}

// PostgresAlertStore implements AlertStore using PostgreSQL.
type PostgresAlertStore struct {
	pool *pgxpool.Pool
}

func NewPostgresAlertStore(pool *pgxpool.Pool) *PostgresAlertStore {
	return &PostgresAlertStore{pool: pool}
}

func (s *PostgresAlertStore) SaveAlerts(ctx context.Context, alerts []models.AnomalyAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range alerts {
		contextJSON, err := json.Marshal(a.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal alert context: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO anomaly_alerts (id, brand_id, severity, metric_type, context, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, a.ID, a.BrandID, string(a.Severity), a.MetricType, contextJSON, string(a.Status), a.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save alert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresAlertStore) ListAlerts(ctx context.Context, brandID string, status models.AlertStatus) ([]models.AnomalyAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, brand_id, severity, metric_type, context, status, created_at
		FROM anomaly_alerts
		WHERE brand_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT 1000
	`, brandID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.AnomalyAlert
	for rows.Next() {
		var a models.AnomalyAlert
		var severity, status string
		var contextJSON []byte

		if err := rows.Scan(&a.ID, &a.BrandID, &severity, &a.MetricType, &contextJSON, &status, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Severity = models.AlertSeverity(severity)
		a.Status = models.AlertStatus(status)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &a.Context); err != nil {
				return nil, fmt.Errorf("failed to parse alert context: %w", err)
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *PostgresAlertStore) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE anomaly_alerts SET status = $2 WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s not found", id)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
