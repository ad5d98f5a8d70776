package models

import "time"

// Instrument is immutable reference data for one tracked symbol,
// loaded once at startup from configuration.
type Instrument struct {
	Symbol string
	Name   string
}

// Observation is one (timestamp, value) point of an indicator series.
type Observation struct {
	Timestamp time.Time
	Value     float64
}

// Quote is the latest price for a symbol together with its provenance.
// Source is "realtime" when served from the live stream and "database"
// when falling back to the last stored close.
type Quote struct {
	Symbol        string
	Price         float64
	PercentChange float64
	AsOf          time.Time
	Source        string
}
