package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	cycleDuration  prometheus.Histogram
	computeLatency *prometheus.HistogramVec
	degradedTotal  *prometheus.CounterVec
	compositeScore *prometheus.GaugeVec
	breakerState   *prometheus.GaugeVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketpulse_cycle_duration_seconds",
				Help:    "Duration of full consolidation refresh cycles",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		computeLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_compute_duration_seconds",
				Help:    "Duration of per-instrument computation stages",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		degradedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_degraded_records_total",
				Help: "Records published with a non-full data quality flag",
			},
			[]string{"symbol", "reason"},
		),
		compositeScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_composite_score",
				Help: "Last composite signal score per symbol",
			},
			[]string{"symbol"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_breaker_state",
				Help: "Circuit breaker state per resource (0 closed, 1 half-open, 2 open)",
			},
			[]string{"resource"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cache_hits_total",
				Help: "Cache hits per tier",
			},
			[]string{"tier"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cache_misses_total",
				Help: "Cache misses per tier",
			},
			[]string{"tier"},
		),
		upstreamErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_upstream_errors_total",
				Help: "Upstream collaborator errors by structured kind",
			},
			[]string{"resource", "kind"},
		),
	}
}

func (r *Recorder) RecordCycleDuration(seconds float64) {
	r.cycleDuration.Observe(seconds)
}

func (r *Recorder) RecordComputeLatency(stage string, seconds float64) {
	r.computeLatency.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordDegradedRecord(symbol, reason string) {
	r.degradedTotal.WithLabelValues(symbol, reason).Inc()
}

func (r *Recorder) RecordCompositeScore(symbol string, score float64) {
	r.compositeScore.WithLabelValues(symbol).Set(score)
}

func (r *Recorder) RecordBreakerState(resource, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	r.breakerState.WithLabelValues(resource).Set(v)
}

func (r *Recorder) RecordCacheHit(tier string) {
	r.cacheHits.WithLabelValues(tier).Inc()
}

func (r *Recorder) RecordCacheMiss(tier string) {
	r.cacheMisses.WithLabelValues(tier).Inc()
}

func (r *Recorder) RecordUpstreamError(resource, kind string) {
	r.upstreamErrors.WithLabelValues(resource, kind).Inc()
}
