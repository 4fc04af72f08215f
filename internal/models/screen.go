package models

import (
	"fmt"
	"time"
)

// ScreenResult is the per-symbol filterable view derived from a QuoteSnapshot.
type ScreenResult struct {
	Symbol       string     `json:"symbol"`
	Sector       string     `json:"sector,omitempty"`
	Price        float64    `json:"price"`
	DMIComposite float64    `json:"dmi_composite"`
	ADX          float64    `json:"adx"`
	PPOHistory   [3]float64 `json:"ppo_history"`
	PPOSlopePct  float64    `json:"ppo_slope_percentage"`
	PPOHook      HookType   `json:"ppo_hook_type"`
	Return5D     float64    `json:"return_5d_pct"`
	Return20D    float64    `json:"return_20d_pct"`
	VolumeRatio  float64    `json:"volume_ratio"`

	Provenance  Provenance  `json:"provenance"`
	DataQuality DataQuality `json:"data_quality"`
	ComputedAt  time.Time   `json:"computed_at"`
}

// PriceFilterType selects the price filter variant.
type PriceFilterType string

const (
	PriceFilterUnder PriceFilterType = "under"
	PriceFilterRange PriceFilterType = "range"
)

// PriceFilter is either Under(max) or Range(min, max).
type PriceFilter struct {
	Type  PriceFilterType `json:"type"`
	Under float64         `json:"under,omitempty"`
	Min   float64         `json:"min,omitempty"`
	Max   float64         `json:"max,omitempty"`
}

// DMIFilter is a closed range over the DMI composite (never ADX).
type DMIFilter struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PPOSlopeFilter admits results whose signed slope meets the minimum.
// Negative thresholds are valid and admit declining-momentum symbols.
type PPOSlopeFilter struct {
	MinSlopePct float64 `json:"min_slope_percentage"`
}

// HookFilterMode selects which hook patterns pass.
type HookFilterMode string

const (
	HookFilterAll      HookFilterMode = "all"
	HookFilterPositive HookFilterMode = "positive"
	HookFilterNegative HookFilterMode = "negative"
	HookFilterBoth     HookFilterMode = "both"
)

// FilterSpec is the full screening specification. All sub-filters are
// optional and AND-combined; a nil sub-filter is a no-op.
type FilterSpec struct {
	Price    *PriceFilter    `json:"price,omitempty"`
	DMI      *DMIFilter      `json:"dmi,omitempty"`
	PPOSlope *PPOSlopeFilter `json:"ppo_slope,omitempty"`
	Hook     HookFilterMode  `json:"hook,omitempty"`
	Sector   string          `json:"sector,omitempty"`
}

// Validate rejects malformed filter specs before a job is created.
func (f *FilterSpec) Validate() error {
	if f == nil {
		return nil
	}
	if p := f.Price; p != nil {
		switch p.Type {
		case PriceFilterUnder:
			if p.Under <= 0 {
				return fmt.Errorf("price filter: 'under' must be positive")
			}
		case PriceFilterRange:
			if p.Min < 0 || p.Max <= 0 || p.Min > p.Max {
				return fmt.Errorf("price filter: invalid range [%v, %v]", p.Min, p.Max)
			}
		default:
			return fmt.Errorf("price filter: unknown type %q", p.Type)
		}
	}
	if d := f.DMI; d != nil {
		if d.Min > d.Max {
			return fmt.Errorf("dmi filter: min %v exceeds max %v", d.Min, d.Max)
		}
	}
	switch f.Hook {
	case "", HookFilterAll, HookFilterPositive, HookFilterNegative, HookFilterBoth:
	default:
		return fmt.Errorf("hook filter: unknown mode %q", f.Hook)
	}
	return nil
}
