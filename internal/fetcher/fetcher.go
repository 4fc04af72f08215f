// Package fetcher resolves quotes through the cache, the ordered provider
// fallback chain, and synthetic degradation. It never errors for data
// unavailability: a snapshot always comes back, with provenance recording
// how far down the chain it came from.
package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/indicators"
	"github.com/kmorwood/sieve/internal/interfaces"
	"github.com/kmorwood/sieve/internal/models"
	"github.com/kmorwood/sieve/internal/quotecache"
	"github.com/kmorwood/sieve/internal/ratelimit"
)

// rankProvenance maps chain position to provenance.
var rankProvenance = []models.Provenance{
	models.ProvenancePrimary,
	models.ProvenanceSecondary,
	models.ProvenanceTertiary,
}

// rankNames are the rate limiter keys for each chain position.
var rankNames = []string{"primary", "secondary", "tertiary"}

// Fetcher is the market data fetcher. The cache and limiter are owned
// components injected at construction, never process-wide globals.
type Fetcher struct {
	providers []interfaces.MarketDataProvider
	cache     *quotecache.Cache
	limiter   *ratelimit.Limiter
	logger    *common.Logger
}

// New creates a fetcher over an ordered provider chain. Providers are
// tried in slice order; at most three ranks are supported.
func New(providers []interfaces.MarketDataProvider, cache *quotecache.Cache, limiter *ratelimit.Limiter, logger *common.Logger) *Fetcher {
	if len(providers) > len(rankNames) {
		providers = providers[:len(rankNames)]
	}
	return &Fetcher{
		providers: providers,
		cache:     cache,
		limiter:   limiter,
		logger:    logger,
	}
}

// RankName returns the rate limiter key for a chain position.
func RankName(i int) string {
	if i < 0 || i >= len(rankNames) {
		return ""
	}
	return rankNames[i]
}

// GetQuote returns a computed snapshot for the symbol. Unless forceRefresh
// is set, an unexpired cache hit short-circuits with no provider call.
// Otherwise providers are tried in priority order, each gated by the rate
// limiter; a denied acquire skips the provider without recording a
// failure. When the whole chain is exhausted or throttled, a deterministic
// synthetic snapshot is returned and cached briefly. Errors are returned
// only for malformed input.
func (f *Fetcher) GetQuote(ctx context.Context, symbol string, tf models.Timeframe, forceRefresh bool) (*models.QuoteSnapshot, int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, 0, fmt.Errorf("symbol must not be empty")
	}
	if _, err := models.ParseTimeframe(string(tf)); err != nil {
		return nil, 0, err
	}

	if !forceRefresh {
		if cached := f.cache.Get(symbol, tf); cached != nil {
			hit := *cached
			hit.Provenance = models.ProvenanceCache
			return &hit, 0, nil
		}
	}

	apiCalls := 0
	for i, provider := range f.providers {
		if !f.limiter.TryAcquire(rankNames[i]) {
			// Budget exhausted for this window: skip, not a failure.
			f.logger.Debug().
				Str("provider", provider.Name()).
				Str("rank", rankNames[i]).
				Msg("Provider throttled, trying next")
			continue
		}

		apiCalls++
		bars, err := provider.FetchBars(ctx, symbol, tf)
		if err != nil {
			f.logger.Warn().
				Str("symbol", symbol).
				Str("provider", provider.Name()).
				Err(err).
				Msg("Provider fetch failed, trying next")
			continue
		}
		if len(bars) == 0 {
			f.logger.Debug().
				Str("symbol", symbol).
				Str("provider", provider.Name()).
				Msg("Provider returned empty series, trying next")
			continue
		}

		snapshot := f.build(symbol, tf, normalizeBars(bars), rankProvenance[i])
		f.cache.Put(snapshot, quotecache.TTLFor(tf))
		return snapshot, apiCalls, nil
	}

	// Chain exhausted: degrade to a deterministic placeholder and cache
	// it briefly so the next attempt doesn't thrash the same providers.
	f.logger.Warn().
		Str("symbol", symbol).
		Int("api_calls", apiCalls).
		Msg("All providers exhausted or throttled, synthesizing quote")

	snapshot := f.build(symbol, tf, SyntheticBars(symbol, tf), models.ProvenanceSynthetic)
	f.cache.Put(snapshot, common.TTLSynthetic)
	return snapshot, apiCalls, nil
}

// build computes indicators and assembles the immutable snapshot.
func (f *Fetcher) build(symbol string, tf models.Timeframe, bars []models.Bar, prov models.Provenance) *models.QuoteSnapshot {
	return &models.QuoteSnapshot{
		Symbol:     symbol,
		Timeframe:  tf,
		Bars:       bars,
		Indicators: indicators.Compute(bars),
		Provenance: prov,
		ComputedAt: nowUTC(),
	}
}

// normalizeBars drops zero-close bars so indicator math never divides by
// a missing close.
func normalizeBars(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		if b.High < b.Close {
			b.High = b.Close
		}
		if b.Low > b.Close || b.Low <= 0 {
			b.Low = b.Close
		}
		out = append(out, b)
	}
	return out
}
