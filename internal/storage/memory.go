package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/radiusdt/vector-attribution/internal/models"
)

// In-memory implementations, used in development mode and in tests when
// no database is configured.

// InMemoryLedgerStore stores attribution ledgers in memory.
type InMemoryLedgerStore struct {
	mu      sync.RWMutex
	ledgers map[string]*models.AttributionLedger
}

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		ledgers: make(map[string]*models.AttributionLedger),
	}
}

func (s *InMemoryLedgerStore) GetLedger(_ context.Context, leadID string) (*models.AttributionLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[leadID]
	if !ok {
		return nil, nil
	}
	cp := *l
	cp.Touchpoints = append([]models.TouchpointRecord(nil), l.Touchpoints...)
	return &cp, nil
}

func (s *InMemoryLedgerStore) SaveLedger(_ context.Context, ledger *models.AttributionLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ledger
	cp.Touchpoints = append([]models.TouchpointRecord(nil), ledger.Touchpoints...)
	s.ledgers[ledger.LeadID] = &cp
	return nil
}

func (s *InMemoryLedgerStore) FindLeadByExternalID(_ context.Context, platform models.Platform, externalID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.ledgers {
		var id string
		switch platform {
		case models.PlatformMeta:
			id = l.ExternalIDs.Meta
		case models.PlatformGoogle:
			id = l.ExternalIDs.Google
		case models.PlatformTikTok:
			id = l.ExternalIDs.TikTok
		default:
			id = l.ExternalIDs.CRM
		}
		if id != "" && id == externalID {
			return l.LeadID, nil
		}
	}
	return "", nil
}

// InMemoryJourneyStore stores leads, events and transactions in memory.
type InMemoryJourneyStore struct {
	mu           sync.RWMutex
	leads        map[string]*models.Lead
	events       map[string][]models.JourneyEvent
	transactions map[string][]models.Transaction
}

func NewInMemoryJourneyStore() *InMemoryJourneyStore {
	return &InMemoryJourneyStore{
		leads:        make(map[string]*models.Lead),
		events:       make(map[string][]models.JourneyEvent),
		transactions: make(map[string][]models.Transaction),
	}
}

// PutLead seeds a lead record.
func (s *InMemoryJourneyStore) PutLead(lead *models.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *lead
	s.leads[lead.ID] = &cp
}

// AppendEvent seeds a journey event.
func (s *InMemoryJourneyStore) AppendEvent(ev models.JourneyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.LeadID] = append(s.events[ev.LeadID], ev)
}

// AppendTransaction seeds a transaction.
func (s *InMemoryJourneyStore) AppendTransaction(t models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.LeadID] = append(s.transactions[t.LeadID], t)
}

func (s *InMemoryJourneyStore) GetLead(_ context.Context, leadID string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[leadID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *InMemoryJourneyStore) ListEventsByLead(_ context.Context, leadID string) ([]models.JourneyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.JourneyEvent(nil), s.events[leadID]...), nil
}

func (s *InMemoryJourneyStore) ListTransactionsByLeads(_ context.Context, leadIDs []string) ([]models.Transaction, error) {
	if len(leadIDs) > maxLeadBatch {
		return nil, fmt.Errorf("transaction lookup batch of %d exceeds limit of %d", len(leadIDs), maxLeadBatch)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var txns []models.Transaction
	for _, id := range leadIDs {
		txns = append(txns, s.transactions[id]...)
	}
	return txns, nil
}

func (s *InMemoryJourneyStore) ListLeadIDsBySegment(_ context.Context, brandID string, segment models.Segment) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, l := range s.leads {
		if l.BrandID == brandID && l.Segment == segment {
			ids = append(ids, l.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *InMemoryJourneyStore) UpdateLeadPropensity(_ context.Context, leadID string, score float64, segment models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[leadID]
	if !ok {
		return fmt.Errorf("lead %s not found", leadID)
	}
	l.PropensityScore = score
	l.Segment = segment
	return nil
}

// InMemoryMetricStore stores raw metric records in memory.
type InMemoryMetricStore struct {
	mu      sync.RWMutex
	records []models.RawMetricRecord
	// history holds pre-aggregated per-day metric series keyed by
	// entity id and metric name.
	history map[string][]models.MetricPoint
}

func NewInMemoryMetricStore() *InMemoryMetricStore {
	return &InMemoryMetricStore{
		history: make(map[string][]models.MetricPoint),
	}
}

// PutHistory seeds a metric history series for an entity.
func (s *InMemoryMetricStore) PutHistory(entityID, metric string, points []models.MetricPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entityID+"|"+metric] = append([]models.MetricPoint(nil), points...)
}

func (s *InMemoryMetricStore) SaveRawMetrics(_ context.Context, records []models.RawMetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *InMemoryMetricStore) ListRawMetrics(_ context.Context, brandID string, start, end time.Time) ([]models.RawMetricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.RawMetricRecord
	for _, r := range s.records {
		if r.BrandID != brandID {
			continue
		}
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryMetricStore) MetricHistory(_ context.Context, entityID, metric string, days int) ([]models.MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.history[entityID+"|"+metric]
	if len(points) > days {
		points = points[len(points)-days:]
	}
	return append([]models.MetricPoint(nil), points...), nil
}

func (s *InMemoryMetricStore) DailySpendSeries(_ context.Context, brandID string, start, end time.Time) ([]models.MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[time.Time]float64)
	for _, r := range s.records {
		if r.BrandID != brandID || r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		day := time.Date(r.Timestamp.Year(), r.Timestamp.Month(), r.Timestamp.Day(), 0, 0, 0, 0, time.UTC)
		switch {
		case r.Metrics != nil:
			byDay[day] += r.Metrics.Spend
		case r.Data != nil:
			byDay[day] += r.Data.Spend
		}
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]models.MetricPoint, 0, len(days))
	for _, d := range days {
		out = append(out, models.MetricPoint{Date: d, Value: byDay[d]})
	}
	return out, nil
}

// InMemoryReportStore stores cross-channel reports in memory.
type InMemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]*models.CrossChannelReport
}

func NewInMemoryReportStore() *InMemoryReportStore {
	return &InMemoryReportStore{
		reports: make(map[string]*models.CrossChannelReport),
	}
}

func (s *InMemoryReportStore) UpsertReport(_ context.Context, report *models.CrossChannelReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *report
	s.reports[report.ID] = &cp
	return nil
}

func (s *InMemoryReportStore) GetReport(_ context.Context, id string) (*models.CrossChannelReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// InMemoryResultStore stores attribution results in memory.
type InMemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]*models.AttributionResult
}

func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{
		results: make(map[string]*models.AttributionResult),
	}
}

func (s *InMemoryResultStore) SaveAttributionResult(_ context.Context, result *models.AttributionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *result
	s.results[result.TransactionID] = &cp
	return nil
}

func (s *InMemoryResultStore) GetAttributionResult(_ context.Context, transactionID string) (*models.AttributionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[transactionID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// InMemoryLTVStore stores cohort estimations in memory.
type InMemoryLTVStore struct {
	mu          sync.RWMutex
	estimations map[string]*models.LTVEstimation
}

func NewInMemoryLTVStore() *InMemoryLTVStore {
	return &InMemoryLTVStore{
		estimations: make(map[string]*models.LTVEstimation),
	}
}

func (s *InMemoryLTVStore) UpsertEstimation(_ context.Context, est *models.LTVEstimation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *est
	s.estimations[est.CohortID] = &cp
	return nil
}

func (s *InMemoryLTVStore) ListEstimations(_ context.Context, brandID string) ([]*models.LTVEstimation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.LTVEstimation
	for _, est := range s.estimations {
		if est.BrandID == brandID {
			cp := *est
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CohortID < out[j].CohortID })
	return out, nil
}

// InMemoryAlertStore stores anomaly alerts in memory.
type InMemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]models.AnomalyAlert
}

func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{
		alerts: make(map[string]models.AnomalyAlert),
	}
}

func (s *InMemoryAlertStore) SaveAlerts(_ context.Context, alerts []models.AnomalyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		if _, exists := s.alerts[a.ID]; !exists {
			s.alerts[a.ID] = a
		}
	}
	return nil
}

func (s *InMemoryAlertStore) ListAlerts(_ context.Context, brandID string, status models.AlertStatus) ([]models.AnomalyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AnomalyAlert
	for _, a := range s.alerts {
		if a.BrandID != brandID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryAlertStore) UpdateAlertStatus(_ context.Context, id string, status models.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("alert %s not found", id)
	}
	a.Status = status
	s.alerts[id] = a
	return nil
}

// InMemoryPropensityCache stores propensity results in memory. TTLs are
// checked lazily on read.
type InMemoryPropensityCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    models.PropensityResult
	expiresAt time.Time
}

func NewInMemoryPropensityCache() *InMemoryPropensityCache {
	return &InMemoryPropensityCache{
		entries: make(map[string]cacheEntry),
	}
}

func (c *InMemoryPropensityCache) Put(_ context.Context, result *models.PropensityResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[result.LeadID] = cacheEntry{
		result:    *result,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (c *InMemoryPropensityCache) Get(_ context.Context, leadID string) (*models.PropensityResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[leadID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	cp := e.result
	return &cp, nil
}

// InMemoryOrganicSalesCounter accumulates daily organic sales in memory.
type InMemoryOrganicSalesCounter struct {
	mu     sync.RWMutex
	counts map[string]float64
}

func NewInMemoryOrganicSalesCounter() *InMemoryOrganicSalesCounter {
	return &InMemoryOrganicSalesCounter{
		counts: make(map[string]float64),
	}
}

func organicKey(brandID string, day time.Time) string {
	return brandID + "|" + day.Format("2006-01-02")
}

func (c *InMemoryOrganicSalesCounter) IncrDaily(_ context.Context, brandID string, day time.Time, amount float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[organicKey(brandID, day)] += amount
	return nil
}

func (c *InMemoryOrganicSalesCounter) DailySeries(_ context.Context, brandID string, start, end time.Time) ([]models.MetricPoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.MetricPoint
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if v, ok := c.counts[organicKey(brandID, day)]; ok {
			out = append(out, models.MetricPoint{Date: day, Value: v})
		}
	}
	return out, nil
}
