package crosschannel

import (
	"fmt"

	"github.com/radiusdt/vector-attribution/internal/metrics"
	"github.com/radiusdt/vector-attribution/internal/models"
)

// sourceToPlatform maps the collector source names of the current raw
// shape onto canonical platforms. Sources not listed here land in the
// aggregated bucket rather than failing the record.
var sourceToPlatform = map[string]models.Platform{
	"meta_ads":     models.PlatformMeta,
	"google_ads":   models.PlatformGoogle,
	"tiktok_ads":   models.PlatformTikTok,
	"linkedin_ads": models.PlatformLinkedIn,
	"klaviyo":      models.PlatformEmail,
}

// Adapter normalizes raw metric records into the one canonical shape.
// Two on-disk generations exist and both must keep decoding until the
// legacy collectors are retired.
type Adapter struct {
	metrics *metrics.Metrics
}

// NewAdapter creates a metric adapter.
func NewAdapter(m *metrics.Metrics) *Adapter {
	return &Adapter{metrics: m}
}

// Normalize converts one raw record into the canonical metric shape.
// The legacy shape (platform + metrics) passes through unchanged; the
// current shape (source + data) is remapped and its missing click and
// impression counts stay zero. Records matching neither shape, or
// ambiguously matching both, are structural errors.
func (a *Adapter) Normalize(rec models.RawMetricRecord) (*models.CanonicalMetric, error) {
	legacy := rec.Platform != "" && rec.Metrics != nil
	current := rec.Source != "" && rec.Data != nil

	switch {
	case legacy && current:
		a.reject("ambiguous_shape")
		return nil, fmt.Errorf("metric record %s matches both legacy and current shapes", rec.ID)
	case legacy:
		return &models.CanonicalMetric{
			BrandID:    rec.BrandID,
			Platform:   models.Platform(rec.Platform),
			ExternalID: rec.ExternalID,
			Name:       rec.Name,
			Level:      rec.Level,
			Metrics:    *rec.Metrics,
			Timestamp:  rec.Timestamp,
		}, nil
	case current:
		platform, ok := sourceToPlatform[rec.Source]
		if !ok {
			platform = models.PlatformAggregated
		}
		return &models.CanonicalMetric{
			BrandID:    rec.BrandID,
			Platform:   platform,
			ExternalID: rec.ExternalID,
			Name:       rec.Name,
			Level:      rec.Level,
			Metrics: models.UnifiedMetrics{
				Spend:       rec.Data.Spend,
				Conversions: rec.Data.Conversions,
				CTR:         rec.Data.CTR,
				CPC:         rec.Data.CPC,
				CPA:         rec.Data.CPA,
				ROAS:        rec.Data.ROAS,
			},
			Timestamp: rec.Timestamp,
		}, nil
	default:
		a.reject("unknown_shape")
		return nil, fmt.Errorf("metric record %s matches no known shape", rec.ID)
	}
}

// NormalizeBatch converts a batch, dropping only records whose shape is
// invalid. The first structural error is returned alongside whatever
// normalized cleanly so callers can decide whether partial data is
// usable.
func (a *Adapter) NormalizeBatch(recs []models.RawMetricRecord) ([]models.CanonicalMetric, error) {
	out := make([]models.CanonicalMetric, 0, len(recs))
	var firstErr error
	for _, rec := range recs {
		cm, err := a.Normalize(rec)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, *cm)
	}
	return out, firstErr
}

func (a *Adapter) reject(reason string) {
	if a.metrics != nil {
		a.metrics.RecordAdapterRejection(reason)
	}
}
