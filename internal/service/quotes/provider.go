package quotes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"MarketPulse/internal/domain/errs"
	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/ratelimit"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// CloseLookup reads the last stored close for a symbol. Satisfied by
// the ClickHouse series store.
type CloseLookup interface {
	LatestClose(ctx context.Context, quoteTable, symbol string) (models.Quote, error)
}

// Config tunes the provider.
type Config struct {
	HTTPURL        string
	APIKey         string
	QuoteTable     string
	StaleAfter     time.Duration
	RateLimitRPS   float64
	RateLimitBurst float64
}

// Provider serves latest quotes: realtime stream first, REST poll when
// the stream is stale, stored close as the last resort. Every failure
// carries a structured errs.Kind; nothing downstream parses messages.
type Provider struct {
	cfg     Config
	stream  *Stream
	rest    *xhttp.Client
	closes  CloseLookup
	limiter *ratelimit.Limiter
	l       *applogger.Logger
}

// NewProvider builds a quote provider. stream may be nil when no
// realtime feed is configured.
func NewProvider(cfg Config, stream *Stream, closes CloseLookup, limiter *ratelimit.Limiter, l *applogger.Logger) *Provider {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	var rest *xhttp.Client
	if cfg.HTTPURL != "" {
		rest = xhttp.NewClient(xhttp.WithTimeout(3 * time.Second))
	}
	return &Provider{
		cfg:     cfg,
		stream:  stream,
		rest:    rest,
		closes:  closes,
		limiter: limiter,
		l:       l,
	}
}

// SeedBaselines primes the stream's percent-change baselines from
// stored closes so the first realtime trades carry a sensible change.
func (p *Provider) SeedBaselines(ctx context.Context, symbols []string) {
	if p.stream == nil || p.closes == nil {
		return
	}
	for _, sym := range symbols {
		q, err := p.closes.LatestClose(ctx, p.cfg.QuoteTable, sym)
		if err != nil {
			p.l.Debug("baseline seed failed",
				applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		p.stream.SeedPrevClose(sym, q.Price)
	}
}

// LatestQuote implements repository.QuoteProvider.
func (p *Provider) LatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if p.stream != nil {
		if price, pct, at, ok := p.stream.Last(symbol); ok && time.Since(at) < p.cfg.StaleAfter {
			return models.Quote{
				Symbol:        symbol,
				Price:         price,
				PercentChange: pct,
				AsOf:          at,
				Source:        "realtime",
			}, nil
		}
	}

	if p.rest != nil {
		q, err := p.poll(ctx, symbol)
		if err == nil {
			return q, nil
		}
		// a quota error must reach the breaker with its kind intact
		if errs.IsRateLimited(err) {
			return models.Quote{}, err
		}
		p.l.Debug("quote poll failed, using stored close",
			applogger.String("symbol", symbol), applogger.Error(err))
	}

	if p.closes != nil {
		return p.closes.LatestClose(ctx, p.cfg.QuoteTable, symbol)
	}
	return models.Quote{}, errs.NewUpstream("quotes", errs.KindNotFound, fmt.Errorf("no quote source for %s", symbol))
}

type restQuote struct {
	Current       float64 `json:"c"`
	PercentChange float64 `json:"dp"`
	Timestamp     int64   `json:"t"`
}

func (p *Provider) poll(ctx context.Context, symbol string) (models.Quote, error) {
	// the local bucket keeps us under the provider quota before the
	// provider has to tell us about it
	if p.limiter != nil && !p.limiter.Allow("quotes", p.cfg.RateLimitBurst, p.cfg.RateLimitRPS) {
		return models.Quote{}, errs.NewUpstream("quotes", errs.KindRateLimited, fmt.Errorf("local rate limit for %s", symbol))
	}

	var rq restQuote
	err := p.rest.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.cfg.HTTPURL,
		QueryParams: map[string][]string{
			"symbol": {symbol},
			"token":  {p.cfg.APIKey},
		},
	}, &rq)
	if err != nil {
		return models.Quote{}, errs.NewUpstream("quotes", classifyHTTPError(ctx, err), err)
	}
	if rq.Current == 0 && rq.Timestamp == 0 {
		return models.Quote{}, errs.NewUpstream("quotes", errs.KindNotFound, fmt.Errorf("empty quote for %s", symbol))
	}
	return models.Quote{
		Symbol:        symbol,
		Price:         rq.Current,
		PercentChange: rq.PercentChange,
		AsOf:          time.Unix(rq.Timestamp, 0),
		Source:        "realtime",
	}, nil
}

func classifyHTTPError(ctx context.Context, err error) errs.Kind {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusTooManyRequests:
			return errs.KindRateLimited
		case se.Status == http.StatusNotFound:
			return errs.KindNotFound
		case se.Status >= 500:
			return errs.KindUnavailable
		default:
			return errs.KindInternal
		}
	}
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return errs.KindTimeout
	}
	return errs.KindUnavailable
}

var _ domrepo.QuoteProvider = (*Provider)(nil)
