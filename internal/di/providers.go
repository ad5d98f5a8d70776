package di

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/breaker"
	"MarketPulse/internal/service/quotes"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/services/stats"
	"MarketPulse/internal/services/zscore"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	pkgkafka "MarketPulse/pkg/kafka"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// indicator and close tables exist.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.Series.Host),
		pkgch.WithPort(cfg.Series.Port),
		pkgch.WithDatabase(cfg.Series.Database),
		pkgch.WithCredentials(cfg.Series.User, cfg.Series.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.Series.DialTimeout, cfg.Series.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.Series.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.Series.Database
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			indicator LowCardinality(String),
			ts DateTime,
			value Float64
		) ENGINE=MergeTree ORDER BY (symbol, indicator, ts)`, db, cfg.Series.Table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			ts DateTime,
			close Float64,
			percent_change Float64
		) ENGINE=ReplacingMergeTree ORDER BY (symbol, ts)`, db, cfg.Series.QuoteTable),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideSeriesStore creates the ClickHouse-backed series store.
func ProvideSeriesStore(chClient *pkgch.Client, cfg *config.Config, l *logger.Logger) *internalrepo.CHSeriesStore {
	store := internalrepo.NewCHSeriesStore(chClient, cfg.Series.Database+"."+cfg.Series.Table)
	store.SetLogger(l)
	return store
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideBreaker creates the upstream circuit breaker and mirrors its
// state transitions into metrics.
func ProvideBreaker(cfg *config.Config, m domrepo.Metrics) *breaker.Breaker {
	b := breaker.New(breaker.Config{
		FailureThreshold:   cfg.Breaker.FailureThreshold,
		RateLimitThreshold: cfg.Breaker.RateLimitThreshold,
		Window:             cfg.Breaker.Window,
		Cooldown:           cfg.Breaker.Cooldown,
	})
	b.OnStateChange(func(resource string, state breaker.State) {
		m.RecordBreakerState(resource, string(state))
	})
	return b
}

// ProvideTieredCache creates the two-tier snapshot cache. The fast tier
// is always in-memory; the standard tier is Redis when enabled and a
// second memory cache otherwise.
func ProvideTieredCache(cfg *config.Config) (*cache.Tiered, error) {
	fast := cache.NewMemoryCache()

	var standard cache.Service
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		standard = rc
	} else {
		standard = cache.NewMemoryCache()
	}

	return cache.NewTiered(fast, standard, cfg.Consolidation.FastTTL, cfg.Consolidation.StandardTTL), nil
}

// ProvideSnapshotPublisher creates the Kafka snapshot publisher, or nil
// when Kafka is disabled.
func ProvideSnapshotPublisher(cfg *config.Config) (domrepo.SnapshotPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideQuoteStream creates the realtime quote stream, or nil when no
// WebSocket feed is configured.
func ProvideQuoteStream(cfg *config.Config, l *logger.Logger) *quotes.Stream {
	if cfg.Quotes.WebSocketURL == "" {
		return nil
	}
	symbols := make([]string, len(cfg.Universe))
	for i, in := range cfg.Universe {
		symbols[i] = in.Symbol
	}
	return quotes.NewStream(
		cfg.Quotes.APIKey,
		cfg.Quotes.WebSocketURL,
		symbols,
		cfg.Quotes.ReconnectDelay,
		cfg.Quotes.PingInterval,
		l,
	)
}

// ProvideQuoteProvider creates the layered quote provider: stream, then
// REST, then stored close.
func ProvideQuoteProvider(cfg *config.Config, stream *quotes.Stream, closes *internalrepo.CHSeriesStore, l *logger.Logger) *quotes.Provider {
	return quotes.NewProvider(quotes.Config{
		HTTPURL:        cfg.Quotes.HTTPURL,
		APIKey:         cfg.Quotes.APIKey,
		QuoteTable:     cfg.Series.Database + "." + cfg.Series.QuoteTable,
		StaleAfter:     cfg.Quotes.StaleAfter,
		RateLimitRPS:   cfg.Quotes.RateLimitRPS,
		RateLimitBurst: cfg.Quotes.RateLimitBurst,
	}, stream, closes, ratelimit.New(), l)
}

// ProvideConsolidation wires the consolidation pipeline.
func ProvideConsolidation(
	cfg *config.Config,
	series *internalrepo.CHSeriesStore,
	qp domrepo.QuoteProvider,
	brk *breaker.Breaker,
	tiers *cache.Tiered,
	pub domrepo.SnapshotPublisher,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.ConsolidationService {
	universe := make([]models.Instrument, len(cfg.Universe))
	for i, in := range cfg.Universe {
		universe[i] = models.Instrument{Symbol: in.Symbol, Name: in.Name}
	}
	return usecase.NewConsolidationService(
		usecase.ConsolidationConfig{
			StepTimeout:    cfg.Consolidation.StepTimeout,
			CycleTimeout:   cfg.Consolidation.CycleTimeout,
			MaxConcurrency: cfg.Consolidation.MaxConcurrency,
		},
		universe,
		series,
		qp,
		stats.NewSufficiencyGate(cfg.Consolidation.MinObservations),
		zscore.NewCalculator(),
		zscore.NewEngine(),
		brk,
		tiers,
		pub,
		m,
		l,
	)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(l *logger.Logger, svc *usecase.ConsolidationService, series *internalrepo.CHSeriesStore, brk *breaker.Breaker) *api.ConsolidatedHandler {
	return api.NewConsolidatedHandler(l, svc, series, brk)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	svc *usecase.ConsolidationService,
	stream *quotes.Stream,
	provider *quotes.Provider,
	handler *api.ConsolidatedHandler,
	chClient *pkgch.Client,
	tiers *cache.Tiered,
	pub domrepo.SnapshotPublisher,
) *server.App {
	return server.New(cfg, l, svc, stream, provider, handler, chClient, tiers, pub)
}
