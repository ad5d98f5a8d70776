package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"MarketPulse/internal/domain/errs"
	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/breaker"
	"MarketPulse/internal/services/stats"
	"MarketPulse/internal/services/zscore"
	"MarketPulse/pkg/cache"
	applogger "MarketPulse/pkg/logger"
)

// Breaker resource names. One breaker per upstream so a ClickHouse
// outage never blocks quote reads and vice versa.
const (
	ResourceSeries = "series"
	ResourceQuotes = "quotes"
)

const (
	snapshotCachePrefix = "consolidated"
	snapshotCacheID     = "all"
	refreshLockTTL      = 10 * time.Second
)

// consolidatedIndicators is the fetch order for one symbol. ATR rides
// along for the volatility multiplier even though it carries no weight.
var consolidatedIndicators = []string{
	zscore.IndicatorRSI,
	zscore.IndicatorMACD,
	zscore.IndicatorPercentB,
	zscore.IndicatorMAGap,
	zscore.IndicatorMomentum,
	zscore.IndicatorATR,
}

// ConsolidationConfig tunes a refresh cycle.
type ConsolidationConfig struct {
	StepTimeout    time.Duration
	CycleTimeout   time.Duration
	MaxConcurrency int
}

// ConsolidationService produces the consolidated metrics snapshot for
// the whole universe: per-symbol fan-out, per-step timeouts, degraded
// records instead of dropped symbols, two-tier cache in front.
type ConsolidationService struct {
	cfg      ConsolidationConfig
	universe []models.Instrument
	series   domrepo.SeriesStore
	quotes   domrepo.QuoteProvider
	gate     *stats.SufficiencyGate
	calc     *zscore.Calculator
	engine   *zscore.Engine
	brk      *breaker.Breaker
	tiers    *cache.Tiered
	pub      domrepo.SnapshotPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger

	cycle atomic.Uint64
}

// NewConsolidationService wires the consolidation pipeline. pub may be
// nil when downstream publishing is disabled.
func NewConsolidationService(
	cfg ConsolidationConfig,
	universe []models.Instrument,
	series domrepo.SeriesStore,
	quotes domrepo.QuoteProvider,
	gate *stats.SufficiencyGate,
	calc *zscore.Calculator,
	engine *zscore.Engine,
	brk *breaker.Breaker,
	tiers *cache.Tiered,
	pub domrepo.SnapshotPublisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *ConsolidationService {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 1250 * time.Millisecond
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	return &ConsolidationService{
		cfg:      cfg,
		universe: universe,
		series:   series,
		quotes:   quotes,
		gate:     gate,
		calc:     calc,
		engine:   engine,
		brk:      brk,
		tiers:    tiers,
		pub:      pub,
		metrics:  metrics,
		l:        l,
	}
}

// SnapshotKey is the cache key under which the consolidated snapshot
// lives in both tiers.
func SnapshotKey() string {
	return cache.GenerateKey(snapshotCachePrefix, snapshotCacheID)
}

// GetConsolidatedMetrics returns the current snapshot, serving from
// cache when possible and recomputing synchronously on a miss. Reads
// during an upstream outage still succeed as long as the standard tier
// holds a previous cycle's snapshot.
func (s *ConsolidationService) GetConsolidatedMetrics(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	tier, err := s.tiers.Get(ctx, SnapshotKey(), &snap)
	if err == nil {
		s.metrics.RecordCacheHit(string(tier))
		return &snap, nil
	}
	s.metrics.RecordCacheMiss(string(cache.TierStandard))

	// single-flight across processes: the loser of the lock race
	// re-reads what the winner computed
	locked, lockErr := s.tiers.TryLock(ctx, SnapshotKey()+":lock", refreshLockTTL)
	if lockErr == nil && !locked {
		if tier, err := s.tiers.Get(ctx, SnapshotKey(), &snap); err == nil {
			s.metrics.RecordCacheHit(string(tier))
			return &snap, nil
		}
	}
	if locked {
		defer func() { _ = s.tiers.Unlock(ctx, SnapshotKey()+":lock") }()
	}
	return s.Refresh(ctx)
}

// GetInstrumentMetrics returns one symbol's record from the current
// snapshot.
func (s *ConsolidationService) GetInstrumentMetrics(ctx context.Context, symbol string) (*models.InstrumentMetricsRecord, error) {
	snap, err := s.GetConsolidatedMetrics(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snap.Records {
		if snap.Records[i].Symbol == symbol {
			return &snap.Records[i], nil
		}
	}
	return nil, fmt.Errorf("symbol %s not in universe", symbol)
}

// InvalidateCache drops the consolidated snapshot from both tiers so
// the next read recomputes.
func (s *ConsolidationService) InvalidateCache(ctx context.Context) error {
	if err := s.tiers.Invalidate(ctx, SnapshotKey()); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	s.l.Info("consolidated snapshot invalidated")
	return nil
}

// Refresh computes a full snapshot for the universe, caches it, and
// publishes it downstream. Every configured symbol gets a record; a
// symbol whose data cannot be computed gets a degraded HOLD record,
// never silence. Publishing is best-effort and never fails the cycle.
func (s *ConsolidationService) Refresh(ctx context.Context) (*models.Snapshot, error) {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	records := make([]models.InstrumentMetricsRecord, len(s.universe))
	g, gctx := errgroup.WithContext(cctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, in := range s.universe {
		i, in := i, in
		g.Go(func() error {
			records[i] = s.consolidateSymbol(gctx, in)
			return nil
		})
	}
	// workers never return errors; degraded symbols become records
	_ = g.Wait()

	snap := &models.Snapshot{
		Records:     records,
		GeneratedAt: time.Now().UTC(),
		Cycle:       s.cycle.Add(1),
	}
	s.metrics.RecordCycleDuration(time.Since(start).Seconds())

	if err := s.tiers.Set(ctx, SnapshotKey(), snap); err != nil {
		s.l.Error("snapshot cache write failed", applogger.Error(err))
	}
	if s.pub != nil {
		if err := s.pub.PublishSnapshot(ctx, snap); err != nil {
			s.l.Error("snapshot publish failed",
				applogger.Uint64("cycle", snap.Cycle), applogger.Error(err))
		}
	}

	s.l.Info("refresh cycle complete",
		applogger.Uint64("cycle", snap.Cycle),
		applogger.Int("symbols", len(records)),
		applogger.Duration("took", time.Since(start)))
	return snap, nil
}

// consolidateSymbol builds one symbol's record. It never returns an
// error: upstream failures and thin history degrade the record in
// place.
func (s *ConsolidationService) consolidateSymbol(ctx context.Context, in models.Instrument) models.InstrumentMetricsRecord {
	now := time.Now().UTC()
	rec := models.InstrumentMetricsRecord{
		Symbol:     in.Symbol,
		Name:       in.Name,
		Indicators: make(map[string]float64, len(consolidatedIndicators)),
		ZScores:    make(map[string]models.IndicatorZScores, len(consolidatedIndicators)),
		Quality:    models.QualityFull,
		ComputedAt: now,
	}

	quoteErr := s.attachQuote(ctx, &rec)

	var firstInsufficient *errs.InsufficientDataError
	insufficient := 0
	for _, indicator := range consolidatedIndicators {
		series, err := s.fetchSeries(ctx, in.Symbol, indicator)
		if err != nil {
			// upstream failure, not a data property: the whole symbol
			// degrades to a safe HOLD
			hr := models.HoldRecord(in, models.QualityDegraded, degradeReason(err), now)
			hr.Price = rec.Price
			hr.PercentChange = rec.PercentChange
			hr.PriceSource = rec.PriceSource
			s.metrics.RecordDegradedRecord(in.Symbol, hr.QualityReason)
			return hr
		}
		if gateErr := s.gate.Check(in.Symbol, indicator, series); gateErr != nil {
			insufficient++
			if ie, ok := errs.AsInsufficient(gateErr); ok && firstInsufficient == nil {
				firstInsufficient = ie
			}
			continue
		}
		current := series[len(series)-1].Value
		rec.Indicators[indicator] = current
		rec.ZScores[indicator] = s.calc.Compute(indicator, current, series)
	}

	directional := 0
	for name := range zscore.DirectionalWeights {
		if _, ok := rec.ZScores[name]; ok {
			directional++
		}
	}
	if directional == 0 {
		reason := string(errs.ReasonNoData)
		if firstInsufficient != nil {
			reason = string(firstInsufficient.Reason)
		}
		hr := models.HoldRecord(in, models.QualityInsufficient, reason, now)
		hr.Price = rec.Price
		hr.PercentChange = rec.PercentChange
		hr.PriceSource = rec.PriceSource
		s.metrics.RecordDegradedRecord(in.Symbol, reason)
		return hr
	}

	sig := s.engine.Compose(rec.ZScores)
	rec.Signal = &sig
	s.metrics.RecordCompositeScore(in.Symbol, sig.Score)

	switch {
	case insufficient > 0:
		rec.Quality = models.QualityDegraded
		if firstInsufficient != nil {
			rec.QualityReason = string(firstInsufficient.Reason)
		}
		s.metrics.RecordDegradedRecord(in.Symbol, rec.QualityReason)
	case quoteErr != nil:
		rec.Quality = models.QualityStale
		rec.QualityReason = "quote_" + string(errs.KindOf(quoteErr))
	}
	return rec
}

// attachQuote fills the price fields from the quote provider, breaker
// permitting. A missing quote is tolerable; the signal side still runs.
func (s *ConsolidationService) attachQuote(ctx context.Context, rec *models.InstrumentMetricsRecord) error {
	if !s.brk.CanExecute(ResourceQuotes) {
		return &errs.CircuitOpenError{Resource: ResourceQuotes}
	}
	qctx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()

	start := time.Now()
	q, err := s.quotes.LatestQuote(qctx, rec.Symbol)
	s.metrics.RecordComputeLatency("quote_fetch", time.Since(start).Seconds())
	if err != nil {
		s.brk.RecordFailure(ResourceQuotes, errs.IsRateLimited(err))
		s.metrics.RecordUpstreamError(ResourceQuotes, string(errs.KindOf(err)))
		s.l.Debug("quote unavailable",
			applogger.String("symbol", rec.Symbol), applogger.Error(err))
		return err
	}
	s.brk.RecordSuccess(ResourceQuotes)
	price, pct := q.Price, q.PercentChange
	rec.Price = &price
	rec.PercentChange = &pct
	rec.PriceSource = q.Source
	return nil
}

func (s *ConsolidationService) fetchSeries(ctx context.Context, symbol, indicator string) ([]models.Observation, error) {
	if !s.brk.CanExecute(ResourceSeries) {
		return nil, &errs.CircuitOpenError{Resource: ResourceSeries}
	}
	fctx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()

	start := time.Now()
	series, err := s.series.GetHistoricalSeries(fctx, symbol, indicator, models.MaxLookback)
	s.metrics.RecordComputeLatency("series_fetch", time.Since(start).Seconds())
	if err != nil {
		s.brk.RecordFailure(ResourceSeries, errs.IsRateLimited(err))
		s.metrics.RecordUpstreamError(ResourceSeries, string(errs.KindOf(err)))
		return nil, err
	}
	s.brk.RecordSuccess(ResourceSeries)
	return series, nil
}

func degradeReason(err error) string {
	if errors.Is(err, errs.ErrCircuitOpen) {
		return "circuit_open"
	}
	return string(errs.KindOf(err))
}
