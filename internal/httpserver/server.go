package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/radiusdt/vector-attribution/internal/anomaly"
	"github.com/radiusdt/vector-attribution/internal/attribution"
	"github.com/radiusdt/vector-attribution/internal/config"
	"github.com/radiusdt/vector-attribution/internal/crosschannel"
	"github.com/radiusdt/vector-attribution/internal/database"
	"github.com/radiusdt/vector-attribution/internal/enrich"
	"github.com/radiusdt/vector-attribution/internal/ltv"
	"github.com/radiusdt/vector-attribution/internal/metrics"
	"github.com/radiusdt/vector-attribution/internal/mmm"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/radiusdt/vector-attribution/internal/propensity"
	"github.com/radiusdt/vector-attribution/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	ClickHouse *database.ClickHouseDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and attribution services.
type Server struct {
	bridge     *attribution.BridgeService
	aggregator *crosschannel.Aggregator
	scorer     *propensity.Engine
	estimator  *ltv.Estimator
	correlator *mmm.Service
	detector   *anomaly.Detector
	adapter    *crosschannel.Adapter

	metricStore storage.MetricStore
	reportStore storage.ReportStore
	resultStore storage.ResultStore
	ltvStore    storage.LTVStore
	alertStore  storage.AlertStore
	organic     storage.OrganicSalesCounter

	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	// Initialize stores, falling back to in-memory when a backend is
	// not configured
	var ledgerStore storage.LedgerStore
	var journeyStore storage.JourneyStore
	var reportStore storage.ReportStore
	var resultStore storage.ResultStore
	var ltvStore storage.LTVStore
	var alertStore storage.AlertStore

	if deps.DB != nil {
		ledgerStore = storage.NewPostgresLedgerStore(deps.DB.Pool)
		journeyStore = storage.NewPostgresJourneyStore(deps.DB.Pool)
		reportStore = storage.NewPostgresReportStore(deps.DB.Pool)
		resultStore = storage.NewPostgresResultStore(deps.DB.Pool)
		ltvStore = storage.NewPostgresLTVStore(deps.DB.Pool)
		alertStore = storage.NewPostgresAlertStore(deps.DB.Pool)
	} else {
		ledgerStore = storage.NewInMemoryLedgerStore()
		journeyStore = storage.NewInMemoryJourneyStore()
		reportStore = storage.NewInMemoryReportStore()
		resultStore = storage.NewInMemoryResultStore()
		ltvStore = storage.NewInMemoryLTVStore()
		alertStore = storage.NewInMemoryAlertStore()
	}

	var metricStore storage.MetricStore
	if deps.ClickHouse != nil {
		metricStore = storage.NewClickHouseMetricStore(deps.ClickHouse.Conn)
	} else {
		metricStore = storage.NewInMemoryMetricStore()
	}

	var propensityCache storage.PropensityCache
	var organic storage.OrganicSalesCounter
	if deps.Redis != nil {
		propensityCache = storage.NewRedisPropensityCache(deps.Redis.Client)
		organic = storage.NewRedisOrganicSalesCounter(deps.Redis.Client)
	} else {
		propensityCache = storage.NewInMemoryPropensityCache()
		organic = storage.NewInMemoryOrganicSalesCounter()
	}

	// Initialize geo enrichment
	var geoProvider enrich.GeoProvider
	if deps.Config.Geo.Enabled {
		p, err := enrich.NewMaxMindGeoProvider(deps.Config.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to initialize geo provider, touchpoints will be unenriched", zap.Error(err))
		} else {
			geoProvider = p
		}
	}
	enricher := enrich.NewGeoEnricher(geoProvider, deps.Metrics)

	// Initialize services
	engine := attribution.NewEngine(deps.Config.Attribution)
	bridge := attribution.NewBridgeService(ledgerStore, resultStore, engine, enricher, deps.Logger, deps.Metrics)
	adapter := crosschannel.NewAdapter(deps.Metrics)
	aggregator := crosschannel.NewAggregator(adapter, metricStore, reportStore, deps.Config.Aggregator, deps.Logger, deps.Metrics)
	scorer := propensity.NewEngine(journeyStore, propensityCache, deps.Config.Propensity, deps.Logger, deps.Metrics)
	estimator := ltv.NewEstimator(journeyStore, ltvStore, deps.Config.LTV, deps.Logger, deps.Metrics)
	correlator := mmm.NewService(metricStore, organic, deps.Logger, deps.Metrics)
	detector := anomaly.NewDetector(metricStore, alertStore, deps.Config.Anomaly, deps.Logger, deps.Metrics)

	s := &Server{
		bridge:      bridge,
		aggregator:  aggregator,
		scorer:      scorer,
		estimator:   estimator,
		correlator:  correlator,
		detector:    detector,
		adapter:     adapter,
		metricStore: metricStore,
		reportStore: reportStore,
		resultStore: resultStore,
		ltvStore:    ltvStore,
		alertStore:  alertStore,
		organic:     organic,
		logger:      deps.Logger,
		config:      deps.Config,
		metrics:     deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Event ingestion and identity
	mux.HandleFunc("/events/sync", s.handleSyncEvents)
	mux.HandleFunc("/leads/by-external-id", s.handleFindLead)

	// Attribution
	mux.HandleFunc("/attribution/transaction", s.handleAttributeTransaction)
	mux.HandleFunc("/attribution/results/", s.handleAttributionResult)

	// Metrics ingestion and reporting
	mux.HandleFunc("/metrics/raw", s.handleIngestMetrics)
	mux.HandleFunc("/reports/cross-channel", s.handleCrossChannelReport)
	mux.HandleFunc("/reports/", s.handleReportByID)

	// Intelligence
	mux.HandleFunc("/propensity/", s.handlePropensity)
	mux.HandleFunc("/ltv/estimate", s.handleLTVEstimate)
	mux.HandleFunc("/ltv", s.handleLTVList)
	mux.HandleFunc("/mmm/correlation", s.handleCorrelation)
	mux.HandleFunc("/sales/organic", s.handleOrganicSale)

	// Anomalies
	mux.HandleFunc("/anomalies/detect", s.handleDetectAnomalies)
	mux.HandleFunc("/alerts", s.handleListAlerts)
	mux.HandleFunc("/alerts/", s.handleAlertAction)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Event Ingestion ----

type syncEventsRequest struct {
	LeadID string                `json:"lead_id"`
	Events []models.JourneyEvent `json:"events"`
}

func (s *Server) handleSyncEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req syncEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.LeadID == "" {
		s.errorResponse(w, "lead_id required", http.StatusBadRequest)
		return
	}

	if err := s.bridge.SyncEvents(r.Context(), req.LeadID, req.Events); err != nil {
		s.logger.Error("failed to sync events", zap.Error(err), zap.String("lead_id", req.LeadID))
		s.errorResponse(w, "failed to sync events", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]interface{}{"lead_id": req.LeadID, "synced": len(req.Events)})
}

func (s *Server) handleFindLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	platform := models.Platform(q.Get("platform"))
	externalID := q.Get("external_id")
	if externalID == "" {
		s.errorResponse(w, "external_id required", http.StatusBadRequest)
		return
	}

	leadID, err := s.bridge.FindLeadByExternalID(r.Context(), platform, externalID)
	if err != nil {
		s.logger.Error("failed to find lead", zap.Error(err))
		s.errorResponse(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if leadID == "" {
		http.NotFound(w, r)
		return
	}

	s.jsonResponse(w, map[string]string{"lead_id": leadID})
}

// ---- Attribution ----

type attributeRequest struct {
	Transaction models.Transaction      `json:"transaction"`
	Model       models.AttributionModel `json:"model"`
}

func (s *Server) handleAttributeTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req attributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Transaction.ID == "" || req.Transaction.LeadID == "" {
		s.errorResponse(w, "transaction id and lead_id required", http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		req.Model = models.ModelLinear
	}

	result, err := s.bridge.AttributeTransaction(r.Context(), req.Transaction, req.Model)
	if err != nil {
		s.logger.Error("failed to attribute transaction", zap.Error(err))
		s.errorResponse(w, "attribution failed", http.StatusInternalServerError)
		return
	}
	if result == nil {
		// Lead has no tracked marketing touch; this is data absence,
		// not an error
		s.jsonResponse(w, map[string]interface{}{
			"transaction_id": req.Transaction.ID,
			"attributed":     false,
		})
		return
	}

	s.jsonResponse(w, result)
}

func (s *Server) handleAttributionResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	txnID := strings.TrimPrefix(r.URL.Path, "/attribution/results/")
	if txnID == "" {
		http.NotFound(w, r)
		return
	}

	result, err := s.resultStore.GetAttributionResult(r.Context(), txnID)
	if err != nil {
		s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if result == nil {
		http.NotFound(w, r)
		return
	}

	s.jsonResponse(w, result)
}

// ---- Metrics Ingestion & Reporting ----

func (s *Server) handleIngestMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var records []models.RawMetricRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	// Shape-check before storing so malformed records are rejected at
	// the door rather than at report time
	if _, err := s.adapter.NormalizeBatch(records); err != nil {
		s.errorResponse(w, "malformed metric record: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.metricStore.SaveRawMetrics(r.Context(), records); err != nil {
		s.logger.Error("failed to save raw metrics", zap.Error(err))
		s.errorResponse(w, "failed to save metrics", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]int{"saved": len(records)})
}

type reportRequest struct {
	BrandID string              `json:"brand_id"`
	Period  models.ReportPeriod `json:"period"`
}

func (s *Server) handleCrossChannelReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.BrandID == "" {
		s.errorResponse(w, "brand_id required", http.StatusBadRequest)
		return
	}
	if req.Period.End.IsZero() {
		req.Period.End = time.Now().UTC()
	}
	if req.Period.Start.IsZero() {
		req.Period.Start = req.Period.End.AddDate(0, 0, -30)
	}

	report, err := s.aggregator.GenerateReport(r.Context(), req.BrandID, req.Period)
	if err != nil {
		s.logger.Error("failed to generate report", zap.Error(err), zap.String("brand_id", req.BrandID))
		s.errorResponse(w, "failed to generate report", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, report)
}

func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/reports/")
	if id == "" || id == "cross-channel" {
		http.NotFound(w, r)
		return
	}

	report, err := s.reportStore.GetReport(r.Context(), id)
	if err != nil {
		s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.NotFound(w, r)
		return
	}

	s.jsonResponse(w, report)
}

// ---- Intelligence ----

func (s *Server) handlePropensity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	leadID := strings.TrimPrefix(r.URL.Path, "/propensity/")
	if leadID == "" {
		s.errorResponse(w, "lead id required", http.StatusBadRequest)
		return
	}

	result, err := s.scorer.ScoreLead(r.Context(), leadID)
	if err != nil {
		s.logger.Error("failed to score lead", zap.Error(err), zap.String("lead_id", leadID))
		s.errorResponse(w, "scoring failed", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, result)
}

type ltvRequest struct {
	BrandID string `json:"brand_id"`
}

func (s *Server) handleLTVEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ltvRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.BrandID == "" {
		s.errorResponse(w, "brand_id required", http.StatusBadRequest)
		return
	}

	estimations, err := s.estimator.EstimateBrand(r.Context(), req.BrandID)
	if err != nil {
		s.logger.Error("failed to estimate LTV", zap.Error(err), zap.String("brand_id", req.BrandID))
		s.errorResponse(w, "estimation failed", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]interface{}{
		"estimations": estimations,
		"overall_ltv": ltv.OverallLTV(estimations),
	})
}

func (s *Server) handleLTVList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	brandID := r.URL.Query().Get("brand_id")
	if brandID == "" {
		s.errorResponse(w, "brand_id required", http.StatusBadRequest)
		return
	}

	estimations, err := s.ltvStore.ListEstimations(r.Context(), brandID)
	if err != nil {
		s.errorResponse(w, "failed to list estimations", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, estimations)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	brandID := q.Get("brand_id")
	if brandID == "" {
		s.errorResponse(w, "brand_id required", http.StatusBadRequest)
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)
	if v := q.Get("start_date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			start = t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end = t
		}
	}

	result, err := s.correlator.CorrelationForBrand(r.Context(), brandID, start, end)
	if err != nil {
		s.errorResponse(w, "failed to compute correlation", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, result)
}

type organicSaleRequest struct {
	BrandID string    `json:"brand_id"`
	Date    time.Time `json:"date"`
	Amount  float64   `json:"amount"`
}

func (s *Server) handleOrganicSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req organicSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.BrandID == "" || req.Amount <= 0 {
		s.errorResponse(w, "brand_id and positive amount required", http.StatusBadRequest)
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	if err := s.organic.IncrDaily(r.Context(), req.BrandID, req.Date, req.Amount); err != nil {
		s.logger.Error("failed to record organic sale", zap.Error(err))
		s.errorResponse(w, "failed to record sale", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ---- Anomalies ----

type detectRequest struct {
	BrandID string                   `json:"brand_id"`
	Current []models.RawMetricRecord `json:"current"`
}

func (s *Server) handleDetectAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.BrandID == "" {
		s.errorResponse(w, "brand_id required", http.StatusBadRequest)
		return
	}

	canonical, err := s.adapter.NormalizeBatch(req.Current)
	if err != nil {
		s.errorResponse(w, "malformed metric record: "+err.Error(), http.StatusBadRequest)
		return
	}

	alerts, err := s.detector.DetectBatch(r.Context(), req.BrandID, canonical)
	if err != nil {
		s.logger.Error("anomaly detection failed", zap.Error(err), zap.String("brand_id", req.BrandID))
		s.errorResponse(w, "detection failed", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	brandID := q.Get("brand_id")
	if brandID == "" {
		s.errorResponse(w, "brand_id required", http.StatusBadRequest)
		return
	}

	alerts, err := s.alertStore.ListAlerts(r.Context(), brandID, models.AlertStatus(q.Get("status")))
	if err != nil {
		s.errorResponse(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, alerts)
}

func (s *Server) handleAlertAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/alerts/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	var status models.AlertStatus
	switch parts[1] {
	case "acknowledge":
		status = models.AlertAcknowledged
	case "resolve":
		status = models.AlertResolved
	default:
		http.NotFound(w, r)
		return
	}

	if err := s.alertStore.UpdateAlertStatus(r.Context(), parts[0], status); err != nil {
		s.errorResponse(w, err.Error(), http.StatusNotFound)
		return
	}

	s.jsonResponse(w, map[string]string{"id": parts[0], "status": string(status)})
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
