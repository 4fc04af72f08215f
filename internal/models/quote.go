// Package models defines data structures for Sieve
package models

import (
	"fmt"
	"time"
)

// Timeframe identifies the requested history window for a quote.
type Timeframe string

// Supported timeframes.
const (
	Timeframe1D  Timeframe = "1D"
	Timeframe5D  Timeframe = "5D"
	Timeframe1M  Timeframe = "1M"
	Timeframe3M  Timeframe = "3M"
	Timeframe6M  Timeframe = "6M"
	TimeframeYTD Timeframe = "YTD"
	Timeframe1Y  Timeframe = "1Y"
	Timeframe5Y  Timeframe = "5Y"
	TimeframeAll Timeframe = "All"
)

// ValidTimeframes lists every accepted timeframe in display order.
var ValidTimeframes = []Timeframe{
	Timeframe1D, Timeframe5D, Timeframe1M, Timeframe3M,
	Timeframe6M, TimeframeYTD, Timeframe1Y, Timeframe5Y, TimeframeAll,
}

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range ValidTimeframes {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", fmt.Errorf("invalid timeframe %q", s)
}

// TimeframeBucket groups timeframes for cache TTL selection.
type TimeframeBucket string

const (
	BucketIntraday TimeframeBucket = "intraday"
	BucketDaily    TimeframeBucket = "daily"
	BucketWeekly   TimeframeBucket = "weekly"
)

// Bucket returns the TTL bucket for a timeframe.
func (tf Timeframe) Bucket() TimeframeBucket {
	switch tf {
	case Timeframe1D, Timeframe5D:
		return BucketIntraday
	case Timeframe5Y, TimeframeAll:
		return BucketWeekly
	default:
		return BucketDaily
	}
}

// Bar is a single OHLCV bar. Series are ordered most-recent-first:
// bars[0] is today, bars[1] is the previous trading day.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Provenance identifies which source produced a snapshot.
type Provenance string

const (
	ProvenancePrimary   Provenance = "primary"
	ProvenanceSecondary Provenance = "secondary"
	ProvenanceTertiary  Provenance = "tertiary"
	ProvenanceSynthetic Provenance = "synthetic"
	ProvenanceCache     Provenance = "cache"
)

// DataQuality reflects how much fallback an indicator needed.
type DataQuality string

const (
	QualityStandard     DataQuality = "standard"
	QualityAdaptive     DataQuality = "adaptive"
	QualityInsufficient DataQuality = "insufficient"
)

// HookType classifies a 3-point PPO reversal shape.
type HookType string

const (
	HookPositive HookType = "positive"
	HookNegative HookType = "negative"
	HookNone     HookType = "none"
)

// IndicatorBundle holds every indicator computed from one bar series.
type IndicatorBundle struct {
	SMA20 float64 `json:"sma_20"`
	SMA50 float64 `json:"sma_50"`
	EMA12 float64 `json:"ema_12"`
	EMA26 float64 `json:"ema_26"`
	RSI14 float64 `json:"rsi_14"`

	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`

	// PPO history: [0]=today, [1]=yesterday, [2]=day before.
	PPOHistory   [3]float64 `json:"ppo_history"`
	PPOSignal    float64    `json:"ppo_signal"`
	PPOHistogram float64    `json:"ppo_histogram"`
	PPOSlopePct  float64    `json:"ppo_slope_percentage"`
	PPOHook      HookType   `json:"ppo_hook_type"`

	DIPlus       float64 `json:"di_plus"`
	DIMinus      float64 `json:"di_minus"`
	ADX          float64 `json:"adx"`
	DMIComposite float64 `json:"dmi_composite"`

	Return5D    float64 `json:"return_5d_pct"`
	Return20D   float64 `json:"return_20d_pct"`
	VolumeRatio float64 `json:"volume_ratio"`

	Quality DataQuality `json:"data_quality"`
}

// QuoteSnapshot is an immutable fetched-and-computed view of one symbol.
type QuoteSnapshot struct {
	Symbol     string          `json:"symbol"`
	Timeframe  Timeframe       `json:"timeframe"`
	Bars       []Bar           `json:"bars"`
	Indicators IndicatorBundle `json:"indicators"`
	Provenance Provenance      `json:"provenance"`
	ComputedAt time.Time       `json:"computed_at"`
}

// LatestClose returns the most recent close, or 0 for an empty series.
func (q *QuoteSnapshot) LatestClose() float64 {
	if len(q.Bars) == 0 {
		return 0
	}
	return q.Bars[0].Close
}
