package scanner

import (
	"time"
)

// perSymbolCost is the assumed wall time per symbol: one provider round
// trip plus indicator computation, amortized over cache hits.
const perSymbolCost = 350 * time.Millisecond

// overlapDiscount reflects large-cap membership overlap between indices:
// a symbol already scanned for one index is a cache hit for the next.
const overlapDiscount = 0.8

// EstimateDuration predicts a scan's wall time from index sizes, the
// worker pool width, and a cross-index overlap discount. Unknown index
// names are input errors.
func (m *Manager) EstimateDuration(indices []string) (time.Duration, error) {
	total := 0
	for _, index := range indices {
		symbols, err := m.universe.Resolve(index)
		if err != nil {
			return 0, err
		}
		total += len(symbols)
	}
	if total == 0 {
		return 0, nil
	}

	estimate := time.Duration(total) * perSymbolCost / time.Duration(m.config.GetMaxWorkers())
	if len(indices) > 1 {
		estimate = time.Duration(float64(estimate) * overlapDiscount)
	}
	return estimate, nil
}
