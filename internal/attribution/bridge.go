package attribution

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/radiusdt/vector-attribution/internal/enrich"
	"github.com/radiusdt/vector-attribution/internal/metrics"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/radiusdt/vector-attribution/internal/storage"
	"go.uber.org/zap"
)

// Payload keys the bridge understands on journey events.
const (
	payloadUTMSource   = "utm_source"
	payloadUTMMedium   = "utm_medium"
	payloadUTMCampaign = "utm_campaign"
	payloadMetaClick   = "fbclid"
	payloadGoogleClick = "gclid"
	payloadTikTokClick = "ttclid"
	payloadCRMID       = "crm_id"
	payloadIP          = "ip"
)

// BridgeService maintains the durable mapping from external click
// identifiers to leads and the ordered touchpoint ledger the attribution
// engine consumes. One ledger per lead; all ledger mutations go through
// this service.
type BridgeService struct {
	ledgers storage.LedgerStore
	results storage.ResultStore
	engine  *Engine
	geo     *enrich.GeoEnricher
	logger  *zap.Logger
	metrics *metrics.Metrics

	// locks serializes read-merge-write per lead so concurrent ingestion
	// cannot silently drop a touchpoint.
	locks keyedMutex
}

// NewBridgeService creates a new attribution bridge.
func NewBridgeService(
	ledgers storage.LedgerStore,
	results storage.ResultStore,
	engine *Engine,
	geo *enrich.GeoEnricher,
	logger *zap.Logger,
	m *metrics.Metrics,
) *BridgeService {
	return &BridgeService{
		ledgers: ledgers,
		results: results,
		engine:  engine,
		geo:     geo,
		logger:  logger,
		metrics: m,
	}
}

// SyncEvents folds a batch of journey events into the lead's ledger.
// Touchpoints are deduplicated by (timestamp, source), so replaying the
// same batch is a no-op. Click identifiers found on any event update the
// external id map last-write-wins. The ledger write is best-effort: a
// failed save is logged and swallowed, leaving the ledger stale until
// the next successful sync.
func (s *BridgeService) SyncEvents(ctx context.Context, leadID string, events []models.JourneyEvent) error {
	if leadID == "" || len(events) == 0 {
		return nil
	}

	unlock := s.locks.lock(leadID)
	defer unlock()

	ledger, err := s.ledgers.GetLedger(ctx, leadID)
	if err != nil {
		return err
	}
	if ledger == nil {
		ledger = &models.AttributionLedger{LeadID: leadID}
	}

	changed := false
	for _, ev := range events {
		if s.metrics != nil {
			s.metrics.RecordEventSynced(ev.Type)
		}
		if s.mergeEvent(ledger, ev) {
			changed = true
		}
	}
	if !changed {
		return nil
	}

	sort.SliceStable(ledger.Touchpoints, func(i, j int) bool {
		return ledger.Touchpoints[i].Timestamp.Before(ledger.Touchpoints[j].Timestamp)
	})
	ledger.LastSyncAt = time.Now().UTC()

	if err := s.ledgers.SaveLedger(ctx, ledger); err != nil {
		s.logger.Warn("failed to save attribution ledger",
			zap.Error(err),
			zap.String("lead_id", leadID),
		)
		if s.metrics != nil {
			s.metrics.RecordPersistFailure("ledger")
		}
	}
	return nil
}

// mergeEvent applies one event to the ledger and reports whether
// anything changed.
func (s *BridgeService) mergeEvent(ledger *models.AttributionLedger, ev models.JourneyEvent) bool {
	tp := touchpointFromEvent(ev)
	ids := tp.ClickIDs

	changed := false
	if ids.Meta != "" && ledger.ExternalIDs.Meta != ids.Meta {
		ledger.ExternalIDs.Meta = ids.Meta
		changed = true
	}
	if ids.Google != "" && ledger.ExternalIDs.Google != ids.Google {
		ledger.ExternalIDs.Google = ids.Google
		changed = true
	}
	if ids.TikTok != "" && ledger.ExternalIDs.TikTok != ids.TikTok {
		ledger.ExternalIDs.TikTok = ids.TikTok
		changed = true
	}
	if crm := ev.Payload[payloadCRMID]; crm != "" && ledger.ExternalIDs.CRM != crm {
		ledger.ExternalIDs.CRM = crm
		changed = true
	}

	// Only events carrying channel identity or a click id become
	// touchpoints; everything else is plain behavioral signal.
	if !tp.HasChannelData() && ids.IsZero() {
		return changed
	}

	if ledger.HasTouchpoint(tp.Timestamp, tp.Source) {
		if s.metrics != nil {
			s.metrics.RecordTouchpointDedup(tp.Source)
		}
		return changed
	}

	tp.GeoCountry = s.geo.Country(ev.Payload[payloadIP])
	ledger.Touchpoints = append(ledger.Touchpoints, tp)
	if s.metrics != nil {
		s.metrics.RecordTouchpoint(tp.Source)
	}
	return true
}

// FindLeadByExternalID resolves a platform click identifier back to a
// lead id. Returns "" when no lead is mapped.
func (s *BridgeService) FindLeadByExternalID(ctx context.Context, platform models.Platform, externalID string) (string, error) {
	if externalID == "" {
		return "", nil
	}
	return s.ledgers.FindLeadByExternalID(ctx, platform, externalID)
}

// AttributeTransaction converts the lead's ledger into a weighted
// attribution result for the transaction. Returns nil when no ledger
// exists or it holds zero touchpoints, which is a legitimate outcome
// for leads converted without tracked marketing touch. The result write is
// best-effort and never blocks the computation.
func (s *BridgeService) AttributeTransaction(ctx context.Context, txn models.Transaction, model models.AttributionModel) (*models.AttributionResult, error) {
	ledger, err := s.ledgers.GetLedger(ctx, txn.LeadID)
	if err != nil {
		return nil, err
	}
	if ledger == nil || len(ledger.Touchpoints) == 0 {
		return nil, nil
	}

	start := time.Now()
	points := s.engine.Attribute(ledger.Touchpoints, model, txn.Timestamp)

	result := &models.AttributionResult{
		LeadID:        txn.LeadID,
		TransactionID: txn.ID,
		Model:         model,
		Points:        points,
		ComputedAt:    time.Now().UTC(),
	}
	if s.metrics != nil {
		s.metrics.RecordAttribution(string(model), len(points), time.Since(start))
	}

	go func() {
		if err := s.results.SaveAttributionResult(context.Background(), result); err != nil {
			s.logger.Warn("failed to save attribution result",
				zap.Error(err),
				zap.String("transaction_id", txn.ID),
			)
			if s.metrics != nil {
				s.metrics.RecordPersistFailure("attribution_result")
			}
		}
	}()

	return result, nil
}

// touchpointFromEvent extracts the channel identity and click ids from
// an event payload.
func touchpointFromEvent(ev models.JourneyEvent) models.TouchpointRecord {
	return models.TouchpointRecord{
		Source:    ev.Payload[payloadUTMSource],
		Medium:    ev.Payload[payloadUTMMedium],
		Campaign:  ev.Payload[payloadUTMCampaign],
		Timestamp: ev.Timestamp,
		ClickIDs: models.ClickIDs{
			Meta:   ev.Payload[payloadMetaClick],
			Google: ev.Payload[payloadGoogleClick],
			TikTok: ev.Payload[payloadTikTokClick],
		},
	}
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
