package models

import "time"

// Classification is the discrete trading signal.
type Classification string

const (
	ClassificationBuy  Classification = "BUY"
	ClassificationHold Classification = "HOLD"
	ClassificationSell Classification = "SELL"
)

// DataQuality flags how much of a record could actually be computed.
type DataQuality string

const (
	QualityFull         DataQuality = "full"
	QualityInsufficient DataQuality = "insufficient"
	QualityDegraded     DataQuality = "degraded"
	QualityStale        DataQuality = "stale"
)

// CompositeSignal is the weighted combination of per-indicator
// contributions. Classification is a pure function of Score and the
// fixed threshold table; Strength ranks records in the UI and never
// feeds back into classification.
type CompositeSignal struct {
	Score          float64             `json:"score"`
	HorizonScores  map[Horizon]float64 `json:"horizon_scores"`
	Classification Classification      `json:"classification"`
	Strength       float64             `json:"strength"`
}

// InstrumentMetricsRecord is the consolidated output for one symbol.
// Immutable once published to cache; a refresh cycle supersedes it,
// never mutates it. Nil pointers serialize as JSON null, never 0.
type InstrumentMetricsRecord struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Price         *float64 `json:"price"`
	PercentChange *float64 `json:"percent_change"`
	PriceSource   string   `json:"price_source,omitempty"`

	Indicators map[string]float64          `json:"indicators,omitempty"`
	ZScores    map[string]IndicatorZScores `json:"z_scores,omitempty"`

	Signal  *CompositeSignal `json:"signal"`
	Quality DataQuality      `json:"quality"`
	// QualityReason explains a non-full quality, e.g. "insufficient_bars".
	QualityReason string    `json:"quality_reason,omitempty"`
	ComputedAt    time.Time `json:"computed_at"`
}

// HoldRecord builds the safe degraded record for a symbol: HOLD, no
// fabricated price or score, explicit quality flag.
func HoldRecord(in Instrument, quality DataQuality, reason string, at time.Time) InstrumentMetricsRecord {
	return InstrumentMetricsRecord{
		Symbol: in.Symbol,
		Name:   in.Name,
		Signal: &CompositeSignal{
			Classification: ClassificationHold,
			HorizonScores:  map[Horizon]float64{},
		},
		Quality:       quality,
		QualityReason: reason,
		ComputedAt:    at,
	}
}

// Snapshot is one full refresh cycle's output for the entire universe.
type Snapshot struct {
	Records     []InstrumentMetricsRecord `json:"records"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Cycle       uint64                    `json:"cycle"`
}
