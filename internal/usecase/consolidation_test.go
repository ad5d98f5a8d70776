package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/errs"
	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/breaker"
	"MarketPulse/internal/services/stats"
	"MarketPulse/internal/services/zscore"
	"MarketPulse/pkg/cache"
	applogger "MarketPulse/pkg/logger"
)

type fakeSeriesStore struct {
	mu    sync.Mutex
	data  map[string][]models.Observation // keyed symbol+"/"+indicator
	err   error
	calls int
}

func (f *fakeSeriesStore) GetHistoricalSeries(_ context.Context, symbol, indicator string, _ int) ([]models.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data[symbol+"/"+indicator], nil
}

func (f *fakeSeriesStore) Health(context.Context) error { return nil }
func (f *fakeSeriesStore) Close() error                 { return nil }

func (f *fakeSeriesStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeQuoteProvider struct {
	err error
}

func (f *fakeQuoteProvider) LatestQuote(_ context.Context, symbol string) (models.Quote, error) {
	if f.err != nil {
		return models.Quote{}, f.err
	}
	return models.Quote{Symbol: symbol, Price: 100, PercentChange: 1.5, AsOf: time.Now(), Source: "realtime"}, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	snaps []*models.Snapshot
}

func (f *fakePublisher) PublishSnapshot(_ context.Context, snap *models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type countingMetrics struct {
	mu       sync.Mutex
	degraded int
	hits     int
	misses   int
}

func (m *countingMetrics) RecordCycleDuration(float64)          {}
func (m *countingMetrics) RecordComputeLatency(string, float64) {}
func (m *countingMetrics) RecordDegradedRecord(string, string) {
	m.mu.Lock()
	m.degraded++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordCompositeScore(string, float64) {}
func (m *countingMetrics) RecordBreakerState(string, string)    {}
func (m *countingMetrics) RecordCacheHit(string) {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordCacheMiss(string) {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordUpstreamError(string, string) {}

func genSeries(n int, base float64) []models.Observation {
	out := make([]models.Observation, n)
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out[i] = models.Observation{
			Timestamp: t0.AddDate(0, 0, i),
			Value:     base + float64(i%20),
		}
	}
	return out
}

func seedFullHistory(store *fakeSeriesStore, symbol string, n int) {
	for _, ind := range consolidatedIndicators {
		store.data[symbol+"/"+ind] = genSeries(n, 40)
	}
}

func newTestService(store *fakeSeriesStore, quotes *fakeQuoteProvider, pub domrepo.SnapshotPublisher, m *countingMetrics, universe ...models.Instrument) *ConsolidationService {
	tiers := cache.NewTiered(cache.NewMemoryCache(), cache.NewMemoryCache(), time.Minute, 15*time.Minute)
	return NewConsolidationService(
		ConsolidationConfig{StepTimeout: time.Second, CycleTimeout: 10 * time.Second, MaxConcurrency: 4},
		universe,
		store,
		quotes,
		stats.NewSufficiencyGate(180),
		zscore.NewCalculator(),
		zscore.NewEngine(),
		breaker.New(breaker.DefaultConfig()),
		tiers,
		pub,
		m,
		applogger.Nop(),
	)
}

func TestRefreshNeverDropsSymbols(t *testing.T) {
	store := &fakeSeriesStore{data: map[string][]models.Observation{}}
	seedFullHistory(store, "SPY", 1300)
	for _, ind := range consolidatedIndicators {
		store.data["NEWCO/"+ind] = genSeries(5, 40)
	}
	pub := &fakePublisher{}
	m := &countingMetrics{}
	svc := newTestService(store, &fakeQuoteProvider{}, pub, m,
		models.Instrument{Symbol: "SPY", Name: "SPDR S&P 500"},
		models.Instrument{Symbol: "NEWCO", Name: "New Listing"},
	)

	snap, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(snap.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(snap.Records))
	}

	byID := map[string]models.InstrumentMetricsRecord{}
	for _, r := range snap.Records {
		byID[r.Symbol] = r
	}

	full := byID["SPY"]
	if full.Quality != models.QualityFull {
		t.Fatalf("SPY quality = %s, want full", full.Quality)
	}
	if full.Signal == nil {
		t.Fatalf("SPY signal missing")
	}
	if full.Price == nil || *full.Price != 100 {
		t.Fatalf("SPY price = %v", full.Price)
	}
	if len(full.ZScores) != len(consolidatedIndicators) {
		t.Fatalf("SPY z-scores = %d, want %d", len(full.ZScores), len(consolidatedIndicators))
	}

	thin := byID["NEWCO"]
	if thin.Quality != models.QualityInsufficient {
		t.Fatalf("NEWCO quality = %s, want insufficient", thin.Quality)
	}
	if thin.QualityReason != string(errs.ReasonInsufficientBars) {
		t.Fatalf("NEWCO reason = %s", thin.QualityReason)
	}
	if thin.Signal == nil || thin.Signal.Classification != models.ClassificationHold {
		t.Fatalf("NEWCO signal = %+v, want HOLD", thin.Signal)
	}
	if thin.Signal.Score != 0 {
		t.Fatalf("NEWCO score = %v, want 0 (never fabricated)", thin.Signal.Score)
	}
	if m.degraded == 0 {
		t.Fatalf("degraded record metric not recorded")
	}
	if len(pub.snaps) != 1 {
		t.Fatalf("published snapshots = %d, want 1", len(pub.snaps))
	}
}

func TestRefreshSeriesOutageDegradesToHold(t *testing.T) {
	store := &fakeSeriesStore{
		data: map[string][]models.Observation{},
		err:  errs.NewUpstream("series", errs.KindUnavailable, errors.New("connection refused")),
	}
	svc := newTestService(store, &fakeQuoteProvider{}, nil, &countingMetrics{},
		models.Instrument{Symbol: "QQQ", Name: "Invesco QQQ"})

	snap, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	rec := snap.Records[0]
	if rec.Quality != models.QualityDegraded {
		t.Fatalf("quality = %s, want degraded", rec.Quality)
	}
	if rec.QualityReason != string(errs.KindUnavailable) {
		t.Fatalf("reason = %s", rec.QualityReason)
	}
	if rec.Signal == nil || rec.Signal.Classification != models.ClassificationHold {
		t.Fatalf("signal = %+v, want HOLD", rec.Signal)
	}
	// the quote side still worked, so the safe record keeps its price
	if rec.Price == nil {
		t.Fatalf("price dropped from degraded record")
	}
}

func TestQuoteFailureStillComputesSignal(t *testing.T) {
	store := &fakeSeriesStore{data: map[string][]models.Observation{}}
	seedFullHistory(store, "IWM", 1300)
	quotes := &fakeQuoteProvider{err: errs.NewUpstream("quotes", errs.KindTimeout, context.DeadlineExceeded)}
	svc := newTestService(store, quotes, nil, &countingMetrics{},
		models.Instrument{Symbol: "IWM", Name: "iShares Russell 2000"})

	snap, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	rec := snap.Records[0]
	if rec.Price != nil || rec.PercentChange != nil {
		t.Fatalf("price fields should stay null without a quote")
	}
	if rec.Signal == nil {
		t.Fatalf("signal should compute without a quote")
	}
	if rec.Quality != models.QualityStale {
		t.Fatalf("quality = %s, want stale", rec.Quality)
	}
	if rec.QualityReason != "quote_timeout" {
		t.Fatalf("reason = %s", rec.QualityReason)
	}
}

func TestGetConsolidatedMetricsServesFromCache(t *testing.T) {
	store := &fakeSeriesStore{data: map[string][]models.Observation{}}
	seedFullHistory(store, "SPY", 1300)
	m := &countingMetrics{}
	svc := newTestService(store, &fakeQuoteProvider{}, nil, m,
		models.Instrument{Symbol: "SPY", Name: "SPDR S&P 500"})

	first, err := svc.GetConsolidatedMetrics(context.Background())
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	callsAfterFirst := store.callCount()

	second, err := svc.GetConsolidatedMetrics(context.Background())
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if store.callCount() != callsAfterFirst {
		t.Fatalf("cache hit still touched the series store")
	}
	if second.Cycle != first.Cycle {
		t.Fatalf("cycle changed on cached read: %d -> %d", first.Cycle, second.Cycle)
	}
	if m.hits == 0 {
		t.Fatalf("cache hit metric not recorded")
	}
}

func TestInvalidateCacheForcesRecompute(t *testing.T) {
	store := &fakeSeriesStore{data: map[string][]models.Observation{}}
	seedFullHistory(store, "SPY", 1300)
	svc := newTestService(store, &fakeQuoteProvider{}, nil, &countingMetrics{},
		models.Instrument{Symbol: "SPY", Name: "SPDR S&P 500"})

	first, err := svc.GetConsolidatedMetrics(context.Background())
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if err := svc.InvalidateCache(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	second, err := svc.GetConsolidatedMetrics(context.Background())
	if err != nil {
		t.Fatalf("read after invalidate: %v", err)
	}
	if second.Cycle != first.Cycle+1 {
		t.Fatalf("cycle = %d, want %d", second.Cycle, first.Cycle+1)
	}
}

func TestNullPriceSurvivesCacheRoundTrip(t *testing.T) {
	store := &fakeSeriesStore{data: map[string][]models.Observation{}}
	seedFullHistory(store, "SPY", 1300)
	quotes := &fakeQuoteProvider{err: errs.NewUpstream("quotes", errs.KindUnavailable, errors.New("down"))}
	svc := newTestService(store, quotes, nil, &countingMetrics{},
		models.Instrument{Symbol: "SPY", Name: "SPDR S&P 500"})

	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	cached, err := svc.GetConsolidatedMetrics(context.Background())
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if cached.Records[0].Price != nil {
		t.Fatalf("null price became %v after the cache round trip", *cached.Records[0].Price)
	}
}

func TestGetInstrumentMetrics(t *testing.T) {
	store := &fakeSeriesStore{data: map[string][]models.Observation{}}
	seedFullHistory(store, "SPY", 1300)
	svc := newTestService(store, &fakeQuoteProvider{}, nil, &countingMetrics{},
		models.Instrument{Symbol: "SPY", Name: "SPDR S&P 500"})

	rec, err := svc.GetInstrumentMetrics(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Symbol != "SPY" {
		t.Fatalf("symbol = %s", rec.Symbol)
	}
	if _, err := svc.GetInstrumentMetrics(context.Background(), "NOPE"); err == nil {
		t.Fatalf("unknown symbol should error")
	}
}
