package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketPulse/internal/domain/errs"
	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgch "MarketPulse/pkg/clickhouse"
	applogger "MarketPulse/pkg/logger"
)

// CHSeriesStore implements SeriesStore backed by ClickHouse. Indicator
// observations live in one table keyed by (symbol, indicator, ts).
type CHSeriesStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHSeriesStore creates a ClickHouse-backed series store.
func NewCHSeriesStore(ch *pkgch.Client, table string) *CHSeriesStore {
	return &CHSeriesStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

// GetHistoricalSeries fetches the newest maxLookback observations and
// returns them ordered oldest first. Errors carry a structured kind so
// the circuit breaker can classify them.
func (s *CHSeriesStore) GetHistoricalSeries(ctx context.Context, symbol, indicator string, maxLookback int) ([]models.Observation, error) {
	q := fmt.Sprintf(`
        SELECT ts, value
        FROM %s
        WHERE symbol = ? AND indicator = ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, indicator, maxLookback)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse series query error",
				applogger.String("symbol", symbol),
				applogger.String("indicator", indicator),
				applogger.Error(err),
			)
		}
		return nil, errs.NewUpstream("series", classifyDBError(ctx, err), err)
	}
	defer rows.Close()

	out := make([]models.Observation, 0, maxLookback)
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.Timestamp, &o.Value); err != nil {
			return nil, errs.NewUpstream("series", errs.KindInternal, fmt.Errorf("scan observation: %w", err))
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewUpstream("series", classifyDBError(ctx, err), err)
	}

	// query is newest-first for the LIMIT; callers want oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LatestClose returns the most recent stored close for symbol, used as
// the database fallback when the realtime feed has no price.
func (s *CHSeriesStore) LatestClose(ctx context.Context, quoteTable, symbol string) (models.Quote, error) {
	q := fmt.Sprintf(`
        SELECT ts, close, pct_change
        FROM %s
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT 1
    `, quoteTable)

	var quote models.Quote
	var ts time.Time
	row := s.db.QueryRowContext(ctx, q, symbol)
	if err := row.Scan(&ts, &quote.Price, &quote.PercentChange); err != nil {
		if err == sql.ErrNoRows {
			return quote, errs.NewUpstream("quotes", errs.KindNotFound, fmt.Errorf("no stored close for %s", symbol))
		}
		return quote, errs.NewUpstream("quotes", classifyDBError(ctx, err), err)
	}
	quote.Symbol = symbol
	quote.AsOf = ts
	quote.Source = "database"
	return quote, nil
}

// Health pings the backing database.
func (s *CHSeriesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op: the pooled client owns the connection.
func (s *CHSeriesStore) Close() error { return nil }

func classifyDBError(ctx context.Context, err error) errs.Kind {
	if ctx.Err() == context.DeadlineExceeded {
		return errs.KindTimeout
	}
	return errs.KindUnavailable
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)
