package enrich

import (
	"fmt"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/radiusdt/vector-attribution/internal/metrics"
)

// GeoProvider resolves an IP address to a country code.
type GeoProvider interface {
	CountryCode(ip string) (string, error)
	Close() error
}

// MaxMindGeoProvider implements GeoProvider using a MaxMind GeoLite2
// database.
type MaxMindGeoProvider struct {
	reader *geoip2.Reader
}

// NewMaxMindGeoProvider opens the GeoIP database at dbPath.
func NewMaxMindGeoProvider(dbPath string) (*MaxMindGeoProvider, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindGeoProvider{reader: reader}, nil
}

// CountryCode returns the ISO country code for an IP address.
func (m *MaxMindGeoProvider) CountryCode(ip string) (string, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}

	record, err := m.reader.Country(parsedIP)
	if err != nil {
		return "", err
	}
	return record.Country.IsoCode, nil
}

// Close closes the GeoIP database.
func (m *MaxMindGeoProvider) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}

// GeoEnricher stamps touchpoints with the country resolved from the
// ingesting event's IP. A nil provider disables enrichment.
type GeoEnricher struct {
	provider GeoProvider
	metrics  *metrics.Metrics
}

// NewGeoEnricher creates a geo enricher. provider may be nil.
func NewGeoEnricher(provider GeoProvider, m *metrics.Metrics) *GeoEnricher {
	return &GeoEnricher{provider: provider, metrics: m}
}

// Country resolves ip to a country code, returning "" when enrichment is
// disabled or the lookup fails. Lookup failures are not surfaced: geo is
// decoration on a touchpoint, never a reason to drop one.
func (e *GeoEnricher) Country(ip string) string {
	if e == nil || e.provider == nil || ip == "" {
		return ""
	}

	start := time.Now()
	code, err := e.provider.CountryCode(ip)
	if e.metrics != nil {
		e.metrics.RecordGeoLookup(err == nil && code != "", time.Since(start))
	}
	if err != nil {
		return ""
	}
	return code
}
