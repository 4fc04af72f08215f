// Package indicators provides technical indicator calculations over OHLCV
// bar series. Series are ordered most-recent-first: bars[0] is today.
// Every function is deterministic and side-effect-free; every division is
// guarded and every output finite.
package indicators

import (
	"math"

	"github.com/kmorwood/sieve/internal/models"
)

const (
	ppoFastPeriod = 12
	ppoSlowPeriod = 26

	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9

	dmiPeriod = 14

	// signalDecay approximates a signal line when true indicator history
	// is unavailable: signal = line * signalDecay.
	signalDecay = 0.9

	// atrEpsilon is the threshold below which ATR is treated as zero and
	// the range-normalized DMI heuristic takes over.
	atrEpsilon = 1e-9
)

// SMA calculates Simple Moving Average for the given period
func SMA(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += bars[i].Close
	}
	return sum / float64(period)
}

// EMA calculates Exponential Moving Average for the given period
func EMA(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}

	multiplier := 2.0 / float64(period+1)
	ema := SMA(bars[len(bars)-period:], period) // Start with SMA

	// Walk from oldest to newest within the period
	for i := period - 1; i >= 0; i-- {
		ema = (bars[i].Close-ema)*multiplier + ema
	}

	return ema
}

// RSI calculates Relative Strength Index
func RSI(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 50 // Neutral default
	}

	var gains, losses float64
	for i := 0; i < period; i++ {
		change := bars[i].Close - bars[i+1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD calculates Moving Average Convergence Divergence (12, 26, 9).
// Returns MACD line, signal line, and histogram. The signal line is the
// decay approximation — true MACD history is not retained.
func MACD(bars []models.Bar) (float64, float64, float64) {
	if len(bars) < macdSlowPeriod {
		return 0, 0, 0
	}

	macdLine := EMA(bars, macdFastPeriod) - EMA(bars, macdSlowPeriod)
	signalLine := macdLine * signalDecay
	histogram := macdLine - signalLine

	return macdLine, signalLine, histogram
}

// PPO calculates the Percentage Price Oscillator:
// ((EMA_fast - EMA_slow) / EMA_slow) * 100.
// Periods shrink adaptively for short series (minimum fast=2, slow>fast);
// series with fewer than 3 bars fall back to scaled momentum.
func PPO(bars []models.Bar) (float64, models.DataQuality) {
	n := len(bars)

	switch {
	case n >= ppoSlowPeriod:
		return ppoValue(bars, ppoFastPeriod, ppoSlowPeriod), models.QualityStandard

	case n >= 3:
		slow := n
		fast := n / 2
		if fast < 2 {
			fast = 2
		}
		return ppoValue(bars, fast, slow), models.QualityAdaptive

	case n == 2:
		// Scaled momentum stand-in for an oscillator that cannot exist yet.
		if bars[1].Close == 0 {
			return 0, models.QualityAdaptive
		}
		momentum := (bars[0].Close - bars[1].Close) / bars[1].Close * 100
		return momentum * 0.5, models.QualityAdaptive

	default:
		return 0, models.QualityInsufficient
	}
}

func ppoValue(bars []models.Bar, fast, slow int) float64 {
	emaSlow := EMA(bars, slow)
	if emaSlow == 0 {
		return 0
	}
	return (EMA(bars, fast) - emaSlow) / emaSlow * 100
}

// PPOHistory returns the PPO for today, yesterday, and the day before,
// with the worst data quality observed across the three points.
func PPOHistory(bars []models.Bar) ([3]float64, models.DataQuality) {
	var history [3]float64
	quality := models.QualityStandard

	for i := 0; i < 3; i++ {
		if len(bars) <= i {
			quality = worseQuality(quality, models.QualityInsufficient)
			continue
		}
		v, q := PPO(bars[i:])
		history[i] = v
		quality = worseQuality(quality, q)
	}

	return history, quality
}

// PPOSlope returns the slope between today's and yesterday's PPO as a
// signed percentage. The formula branches on the sign of today's value;
// the sign of the result is meaningful for filtering and is never forced
// positive. yesterday == 0 yields 0.
func PPOSlope(today, yesterday float64) float64 {
	if yesterday == 0 {
		return 0
	}
	if today < 0 {
		return (today - yesterday) / yesterday * 100
	}
	return (yesterday - today) / yesterday * 100
}

// DetectHook classifies the 3-point PPO shape. A downturn off a peak is a
// negative hook. An upturn off a trough is a positive hook only when today
// clears the day-before level; a bounce that stays below it is a failed
// recovery and classes negative.
func DetectHook(today, yesterday, dayBefore float64) models.HookType {
	switch {
	case today > yesterday && yesterday < dayBefore && today > dayBefore:
		return models.HookPositive
	case today < yesterday && yesterday > dayBefore:
		return models.HookNegative
	case today > yesterday && yesterday < dayBefore:
		return models.HookNegative
	default:
		return models.HookNone
	}
}

// DMIResult holds the Wilder directional movement outputs.
type DMIResult struct {
	DIPlus    float64
	DIMinus   float64
	ADX       float64
	Composite float64
	Quality   models.DataQuality
}

// DMI calculates the Directional Movement Index and ADX over the Wilder
// period of 14. The composite is the mean of DI+ and DI-, which is what
// screening filters operate on; it is not ADX. When ATR is near zero the
// result falls back to a price-range-normalized heuristic bounded to
// [0, 100] instead of dividing by ~zero.
func DMI(bars []models.Bar) DMIResult {
	period := dmiPeriod
	quality := models.QualityStandard

	if len(bars) < period+1 {
		if len(bars) < 3 {
			return DMIResult{Quality: models.QualityInsufficient}
		}
		period = len(bars) - 1
		quality = models.QualityAdaptive
	}

	var trSum, dmPlusSum, dmMinusSum float64
	for i := 0; i < period; i++ {
		cur, prev := bars[i], bars[i+1]

		tr1 := cur.High - cur.Low
		tr2 := math.Abs(cur.High - prev.Close)
		tr3 := math.Abs(cur.Low - prev.Close)
		trSum += math.Max(tr1, math.Max(tr2, tr3))

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		if upMove > downMove && upMove > 0 {
			dmPlusSum += upMove
		}
		if downMove > upMove && downMove > 0 {
			dmMinusSum += downMove
		}
	}

	atr := trSum / float64(period)
	dmPlusAvg := dmPlusSum / float64(period)
	dmMinusAvg := dmMinusSum / float64(period)

	var diPlus, diMinus float64
	if atr > atrEpsilon {
		diPlus = 100 * dmPlusAvg / atr
		diMinus = 100 * dmMinusAvg / atr
	} else {
		// Flat-range heuristic: normalize by the window's price range.
		var maxHigh, minLow float64
		minLow = math.MaxFloat64
		for i := 0; i <= period; i++ {
			maxHigh = math.Max(maxHigh, bars[i].High)
			minLow = math.Min(minLow, bars[i].Low)
		}
		priceRange := maxHigh - minLow
		if priceRange > atrEpsilon {
			diPlus = clamp(100*dmPlusAvg*float64(period)/priceRange, 0, 100)
			diMinus = clamp(100*dmMinusAvg*float64(period)/priceRange, 0, 100)
		}
		quality = worseQuality(quality, models.QualityAdaptive)
	}

	var adx float64
	if diPlus+diMinus > 0 {
		adx = 100 * math.Abs(diPlus-diMinus) / (diPlus + diMinus)
	}

	return DMIResult{
		DIPlus:    sanitize(diPlus),
		DIMinus:   sanitize(diMinus),
		ADX:       sanitize(adx),
		Composite: sanitize((diPlus + diMinus) / 2),
		Quality:   quality,
	}
}

// WindowedReturn returns the percentage change from `days` trading days
// ago to today.
func WindowedReturn(bars []models.Bar, days int) float64 {
	if days <= 0 || len(bars) <= days {
		return 0
	}
	base := bars[days].Close
	if base == 0 {
		return 0
	}
	return (bars[0].Close - base) / base * 100
}

// AverageVolume calculates average volume over a period
func AverageVolume(bars []models.Bar, period int) int64 {
	if period <= 0 || len(bars) < period {
		return 0
	}

	var sum int64
	for i := 0; i < period; i++ {
		sum += bars[i].Volume
	}
	return sum / int64(period)
}

// VolumeRatio calculates current volume as ratio of average
func VolumeRatio(bars []models.Bar, period int) float64 {
	if len(bars) == 0 {
		return 1.0
	}

	avg := AverageVolume(bars, period)
	if avg == 0 {
		return 1.0
	}

	return float64(bars[0].Volume) / float64(avg)
}

// Compute assembles the full indicator bundle for a bar series.
func Compute(bars []models.Bar) models.IndicatorBundle {
	ppoHistory, ppoQuality := PPOHistory(bars)
	dmi := DMI(bars)
	macdLine, macdSignal, macdHist := MACD(bars)

	ppoSignal := ppoHistory[0] * signalDecay

	bundle := models.IndicatorBundle{
		SMA20: SMA(bars, 20),
		SMA50: SMA(bars, 50),
		EMA12: EMA(bars, 12),
		EMA26: EMA(bars, 26),
		RSI14: RSI(bars, 14),

		MACD:          sanitize(macdLine),
		MACDSignal:    sanitize(macdSignal),
		MACDHistogram: sanitize(macdHist),

		PPOHistory:   ppoHistory,
		PPOSignal:    sanitize(ppoSignal),
		PPOHistogram: sanitize(ppoHistory[0] - ppoSignal),
		PPOSlopePct:  sanitize(PPOSlope(ppoHistory[0], ppoHistory[1])),
		PPOHook:      DetectHook(ppoHistory[0], ppoHistory[1], ppoHistory[2]),

		DIPlus:       dmi.DIPlus,
		DIMinus:      dmi.DIMinus,
		ADX:          dmi.ADX,
		DMIComposite: dmi.Composite,

		Return5D:    WindowedReturn(bars, 5),
		Return20D:   WindowedReturn(bars, 20),
		VolumeRatio: VolumeRatio(bars, 20),

		Quality: worseQuality(ppoQuality, dmi.Quality),
	}

	for i := range bundle.PPOHistory {
		bundle.PPOHistory[i] = sanitize(bundle.PPOHistory[i])
	}

	return bundle
}

// worseQuality returns the lower-confidence of two quality tags.
func worseQuality(a, b models.DataQuality) models.DataQuality {
	rank := func(q models.DataQuality) int {
		switch q {
		case models.QualityInsufficient:
			return 2
		case models.QualityAdaptive:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// sanitize replaces NaN/Inf with 0 so every output stays finite.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
