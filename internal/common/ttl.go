// Package common provides shared utilities for Sieve
package common

import "time"

// Cache TTLs per timeframe bucket. Intraday series churn fastest; weekly
// history is effectively static between sessions.
const (
	TTLIntraday = 5 * time.Minute
	TTLDaily    = 1 * time.Hour
	TTLWeekly   = 24 * time.Hour

	// TTLSynthetic keeps placeholder snapshots just long enough to avoid
	// hammering exhausted providers on the next symbols.
	TTLSynthetic = 1 * time.Minute
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
