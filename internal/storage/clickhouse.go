package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/radiusdt/vector-attribution/internal/models"
)

// ClickHouseMetricStore implements MetricStore on ClickHouse. Raw
// records are flattened into one wide row per record; the two wire
// shapes are reconstructed on read from the shape column.
type ClickHouseMetricStore struct {
	conn driver.Conn
}

func NewClickHouseMetricStore(conn driver.Conn) *ClickHouseMetricStore {
	return &ClickHouseMetricStore{conn: conn}
}

func (s *ClickHouseMetricStore) SaveRawMetrics(ctx context.Context, records []models.RawMetricRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO raw_metrics (
			id, brand_id, external_id, name, level, timestamp,
			shape, platform, source,
			spend, clicks, impressions, conversions, ctr, cpc, cpa, roas
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare metric batch: %w", err)
	}

	for _, r := range records {
		shape, platform, source := "legacy", r.Platform, r.Source
		m := r.Metrics
		if r.Data != nil {
			shape = "current"
			m = &models.UnifiedMetrics{
				Spend:       r.Data.Spend,
				Conversions: r.Data.Conversions,
				CTR:         r.Data.CTR,
				CPC:         r.Data.CPC,
				CPA:         r.Data.CPA,
				ROAS:        r.Data.ROAS,
			}
		}
		if m == nil {
			m = &models.UnifiedMetrics{}
		}
		if err := batch.Append(
			r.ID, r.BrandID, r.ExternalID, r.Name, r.Level, r.Timestamp,
			shape, platform, source,
			m.Spend, m.Clicks, m.Impressions, m.Conversions, m.CTR, m.CPC, m.CPA, m.ROAS,
		); err != nil {
			return fmt.Errorf("failed to append metric row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send metric batch: %w", err)
	}
	return nil
}

func (s *ClickHouseMetricStore) ListRawMetrics(ctx context.Context, brandID string, start, end time.Time) ([]models.RawMetricRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, brand_id, external_id, name, level, timestamp,
		       shape, platform, source,
		       spend, clicks, impressions, conversions, ctr, cpc, cpa, roas
		FROM raw_metrics
		WHERE brand_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp
	`, brandID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw metrics: %w", err)
	}
	defer rows.Close()

	var out []models.RawMetricRecord
	for rows.Next() {
		var r models.RawMetricRecord
		var shape string
		var m models.UnifiedMetrics

		if err := rows.Scan(
			&r.ID, &r.BrandID, &r.ExternalID, &r.Name, &r.Level, &r.Timestamp,
			&shape, &r.Platform, &r.Source,
			&m.Spend, &m.Clicks, &m.Impressions, &m.Conversions, &m.CTR, &m.CPC, &m.CPA, &m.ROAS,
		); err != nil {
			return nil, err
		}

		if shape == "current" {
			r.Platform = ""
			r.Data = &models.CurrentMetrics{
				Spend:       m.Spend,
				Conversions: m.Conversions,
				CTR:         m.CTR,
				CPC:         m.CPC,
				CPA:         m.CPA,
				ROAS:        m.ROAS,
			}
		} else {
			r.Source = ""
			metrics := m
			r.Metrics = &metrics
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *ClickHouseMetricStore) MetricHistory(ctx context.Context, entityID, metric string, days int) ([]models.MetricPoint, error) {
	column, err := metricColumn(metric)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT toStartOfDay(timestamp) AS day, avg(%s) AS value
		FROM raw_metrics
		WHERE external_id = ? AND timestamp >= now() - INTERVAL ? DAY
		GROUP BY day
		ORDER BY day
	`, column), entityID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s history: %w", metric, err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

func (s *ClickHouseMetricStore) DailySpendSeries(ctx context.Context, brandID string, start, end time.Time) ([]models.MetricPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT toStartOfDay(timestamp) AS day, sum(spend) AS value
		FROM raw_metrics
		WHERE brand_id = ? AND timestamp >= ? AND timestamp <= ?
		GROUP BY day
		ORDER BY day
	`, brandID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend series: %w", err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

func metricColumn(metric string) (string, error) {
	switch metric {
	case "cpc", "ctr", "spend":
		return metric, nil
	default:
		return "", fmt.Errorf("unsupported history metric %q", metric)
	}
}

func scanPoints(rows driver.Rows) ([]models.MetricPoint, error) {
	var out []models.MetricPoint
	for rows.Next() {
		var p models.MetricPoint
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
