package repository

import (
	"context"

	"MarketPulse/internal/domain/models"
)

// SeriesStore provides read-only access to historical indicator series.
// Series come back ordered oldest first; the caller requests the maximum
// lookback once and slices windows locally for each horizon.
type SeriesStore interface {
	GetHistoricalSeries(ctx context.Context, symbol, indicator string, maxLookback int) ([]models.Observation, error)
	Health(ctx context.Context) error
	Close() error
}

// QuoteProvider serves the latest price for a symbol. Implementations
// must classify failures with errs.Kind rather than message text.
type QuoteProvider interface {
	LatestQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// SnapshotPublisher pushes a full refresh cycle's records to downstream
// consumers. Publishing is best-effort; a failure never fails the cycle.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *models.Snapshot) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordCycleDuration(seconds float64)
	RecordComputeLatency(stage string, seconds float64)
	RecordDegradedRecord(symbol, reason string)
	RecordCompositeScore(symbol string, score float64)
	RecordBreakerState(resource, state string)
	RecordCacheHit(tier string)
	RecordCacheMiss(tier string)
	RecordUpstreamError(resource, kind string)
}
