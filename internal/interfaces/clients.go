// Package interfaces defines service contracts for Sieve
package interfaces

import (
	"context"

	"github.com/kmorwood/sieve/internal/models"
)

// MarketDataProvider fetches time-ordered OHLCV bars for a symbol.
// Implementations may error or return an empty series; the fetcher treats
// both as a provider failure and advances the fallback chain.
type MarketDataProvider interface {
	// Name identifies the vendor for logging.
	Name() string

	// FetchBars returns bars most-recent-first for the symbol and
	// timeframe. A timed-out call is a provider failure like any other.
	FetchBars(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Bar, error)
}

// Summarizer produces a narrative summary of completed scan results.
type Summarizer interface {
	Summarize(ctx context.Context, indices []string, results []models.ScreenResult) (string, error)
}
