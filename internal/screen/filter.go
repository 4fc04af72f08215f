// Package screen applies filter specifications to computed scan results.
// Matching is stateless and pure: the same result and spec always produce
// the same verdict, and the result is never mutated.
package screen

import (
	"strings"

	"github.com/kmorwood/sieve/internal/models"
)

// Match reports whether the result passes every configured sub-filter.
// Sub-filters are AND-combined; an absent sub-filter admits everything.
func Match(result *models.ScreenResult, spec *models.FilterSpec) bool {
	if spec == nil {
		return true
	}
	if !matchPrice(result.Price, spec.Price) {
		return false
	}
	if !matchDMI(result.DMIComposite, spec.DMI) {
		return false
	}
	if !matchSlope(result.PPOSlopePct, spec.PPOSlope) {
		return false
	}
	if !matchHook(result.PPOHook, spec.Hook) {
		return false
	}
	if !matchSector(result.Sector, spec.Sector) {
		return false
	}
	return true
}

// Apply filters a result slice, preserving input order.
func Apply(results []*models.ScreenResult, spec *models.FilterSpec) []*models.ScreenResult {
	if spec == nil {
		return results
	}
	out := make([]*models.ScreenResult, 0, len(results))
	for _, r := range results {
		if Match(r, spec) {
			out = append(out, r)
		}
	}
	return out
}

func matchPrice(price float64, f *models.PriceFilter) bool {
	if f == nil {
		return true
	}
	switch f.Type {
	case models.PriceFilterUnder:
		// Strictly under: a price exactly at the threshold is excluded.
		return price < f.Under
	case models.PriceFilterRange:
		return price >= f.Min && price <= f.Max
	default:
		return false
	}
}

// matchDMI tests the composite against a closed interval. Boundary
// values pass.
func matchDMI(composite float64, f *models.DMIFilter) bool {
	if f == nil {
		return true
	}
	return composite >= f.Min && composite <= f.Max
}

func matchSlope(slope float64, f *models.PPOSlopeFilter) bool {
	if f == nil {
		return true
	}
	return slope >= f.MinSlopePct
}

func matchHook(hook models.HookType, mode models.HookFilterMode) bool {
	switch mode {
	case "", models.HookFilterAll:
		return true
	case models.HookFilterPositive:
		return hook == models.HookPositive
	case models.HookFilterNegative:
		return hook == models.HookNegative
	case models.HookFilterBoth:
		return hook == models.HookPositive || hook == models.HookNegative
	default:
		return false
	}
}

func matchSector(sector, want string) bool {
	if want == "" {
		return true
	}
	return strings.EqualFold(sector, want)
}
