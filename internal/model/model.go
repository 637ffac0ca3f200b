// Package model holds the data types shared across the bar-construction
// pipeline: instrument identity, raw provider snapshots, and the bars
// folded from them.
package model

import "time"

// Period is a canonical bar duration token.
type Period string

const (
	Period1m  Period = "1m"
	Period5m  Period = "5m"
	Period15m Period = "15m"
	Period30m Period = "30m"
	Period60m Period = "60m"
	Period1d  Period = "1d"
	Period1w  Period = "1w"
	Period1M  Period = "1M"
)

// DefaultPeriods is the period set the bar builder folds every snapshot into.
var DefaultPeriods = []Period{Period1m, Period5m, Period15m, Period30m, Period60m, Period1d, Period1w, Period1M}

// IsIntraday reports whether a period resets its cumulative totals within a
// single trading day (minute buckets and the daily bucket), as opposed to
// 1w/1M buckets that span a reset.
func (p Period) IsIntraday() bool {
	switch p {
	case Period1w, Period1M:
		return false
	default:
		return true
	}
}

// SymbolInfo identifies a tradable instrument.
type SymbolInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone"`
}

// Snapshot is an instantaneous quote observation. Ts is tz-aware. Last is
// required; the rest are optional and zero-valued when unknown — callers
// distinguish "absent" from "zero" via the Has* flags.
type Snapshot struct {
	Ts   time.Time
	Last float64

	Open      float64
	HasOpen   bool
	High      float64
	HasHigh   bool
	Low       float64
	HasLow    bool
	PrevClose float64
	HasPrevClose bool

	VolumeTotal    float64
	HasVolumeTotal bool
	AmountTotal    float64
	HasAmountTotal bool
}

// Bar is an OHLCV candle. Ts is UTC milliseconds at the bucket start.
type Bar struct {
	Ts       int64   `json:"ts"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Amount   float64 `json:"amount,omitempty"`
	IsClosed bool    `json:"is_closed"`
}

// BarState is the mutable in-progress candle the bar builder maintains for
// one (symbol, period) bucket. Once IsClosed is set the value is emitted
// and must never be mutated again.
type BarState struct {
	BucketStart time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	Amount      float64
	IsClosed    bool
}

// ToBar materializes the current state as an immutable Bar for emission.
func (b *BarState) ToBar(loc *time.Location) Bar {
	return Bar{
		Ts:       BucketStartMillis(b.BucketStart),
		Open:     b.Open,
		High:     b.High,
		Low:      b.Low,
		Close:    b.Close,
		Volume:   b.Volume,
		Amount:   b.Amount,
		IsClosed: b.IsClosed,
	}
}

// BucketStartMillis converts a bucket-start instant to UTC milliseconds.
func BucketStartMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// SymbolState is the per-(symbol, period) accumulator the bar builder owns.
type SymbolState struct {
	CurBar          *BarState
	PrevVolumeTotal float64
	HasPrevVolume   bool
	PrevAmountTotal float64
	HasPrevAmount   bool
	LastTradeDate   string // ISO date in market timezone, "" if unset
}

// BarEvent is a (symbol, period, bar) tuple produced by the bar builder and
// consumed by the hub for broadcast.
type BarEvent struct {
	Symbol string
	Period Period
	Bar    Bar
}
