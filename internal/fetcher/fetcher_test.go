package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/interfaces"
	"github.com/kmorwood/sieve/internal/models"
	"github.com/kmorwood/sieve/internal/quotecache"
	"github.com/kmorwood/sieve/internal/ratelimit"
)

// fakeProvider is a scriptable MarketDataProvider.
type fakeProvider struct {
	name  string
	bars  []models.Bar
	err   error
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchBars(_ context.Context, _ string, _ models.Timeframe) ([]models.Bar, error) {
	p.calls++
	return p.bars, p.err
}

func testBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		bars[i] = models.Bar{
			Date: date.AddDate(0, 0, -i),
			Open: price, High: price * 1.01, Low: price * 0.99, Close: price,
			Volume: 100000,
		}
		price -= 0.5
	}
	return bars
}

func newTestFetcher(providers ...*fakeProvider) (*Fetcher, *ratelimit.Limiter, *quotecache.Cache) {
	limiter := ratelimit.New()
	cache := quotecache.New(100)

	chain := make([]interfaces.MarketDataProvider, 0, len(providers))
	for i, p := range providers {
		limiter.Register(RankName(i), 100, time.Minute)
		chain = append(chain, p)
	}

	f := New(chain, cache, limiter, common.NewSilentLogger())
	return f, limiter, cache
}

func TestMalformedInput(t *testing.T) {
	f, _, _ := newTestFetcher(&fakeProvider{name: "p1", bars: testBars(30)})

	_, _, err := f.GetQuote(context.Background(), "", models.Timeframe1M, false)
	assert.Error(t, err, "empty symbol is rejected")

	_, _, err = f.GetQuote(context.Background(), "AAPL", models.Timeframe("2W"), false)
	assert.Error(t, err, "unknown timeframe is rejected")
}

func TestPrimarySuccess(t *testing.T) {
	p1 := &fakeProvider{name: "p1", bars: testBars(30)}
	p2 := &fakeProvider{name: "p2", bars: testBars(30)}
	f, _, _ := newTestFetcher(p1, p2)

	snap, calls, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, false)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenancePrimary, snap.Provenance)
	assert.Equal(t, 1, calls)
	assert.Zero(t, p2.calls, "chain stops at first success")
}

func TestFallbackOnErrorAndEmpty(t *testing.T) {
	p1 := &fakeProvider{name: "p1", err: errors.New("timeout")}
	p2 := &fakeProvider{name: "p2"} // empty payload
	p3 := &fakeProvider{name: "p3", bars: testBars(30)}
	f, _, _ := newTestFetcher(p1, p2, p3)

	snap, calls, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, false)
	require.NoError(t, err, "transient provider failure must not surface")
	assert.Equal(t, models.ProvenanceTertiary, snap.Provenance)
	assert.Equal(t, 3, calls)
}

func TestSyntheticWhenChainExhausted(t *testing.T) {
	p1 := &fakeProvider{name: "p1", err: errors.New("down")}
	p2 := &fakeProvider{name: "p2", err: errors.New("down")}
	f, _, _ := newTestFetcher(p1, p2)

	snap, _, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, false)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceSynthetic, snap.Provenance)
	assert.NotEmpty(t, snap.Bars)
}

func TestThrottledProviderSkippedWithoutCall(t *testing.T) {
	p1 := &fakeProvider{name: "p1", bars: testBars(30)}
	p2 := &fakeProvider{name: "p2", bars: testBars(30)}
	f, limiter, _ := newTestFetcher(p1, p2)

	// Exhaust the primary budget entirely.
	limiter.Register(RankName(0), 0, time.Minute)

	snap, calls, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, false)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceSecondary, snap.Provenance)
	assert.Zero(t, p1.calls, "throttled provider is skipped, not called")
	assert.Equal(t, 1, calls)
}

func TestCacheHit(t *testing.T) {
	p1 := &fakeProvider{name: "p1", bars: testBars(30)}
	f, _, _ := newTestFetcher(p1)

	_, _, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, false)
	require.NoError(t, err)

	snap, calls, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, false)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceCache, snap.Provenance)
	assert.Zero(t, calls, "cache hit issues no provider call")
	assert.Equal(t, 1, p1.calls)
}

func TestForceRefreshBypassesCache(t *testing.T) {
	p1 := &fakeProvider{name: "p1", bars: testBars(30)}
	f, _, _ := newTestFetcher(p1)

	_, _, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, false)
	require.NoError(t, err)

	snap, calls, err := f.GetQuote(context.Background(), "AAPL", models.Timeframe1M, true)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenancePrimary, snap.Provenance)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, p1.calls)
}

func TestProvenanceAlwaysKnown(t *testing.T) {
	known := map[models.Provenance]bool{
		models.ProvenancePrimary:   true,
		models.ProvenanceSecondary: true,
		models.ProvenanceTertiary:  true,
		models.ProvenanceSynthetic: true,
		models.ProvenanceCache:     true,
	}

	p1 := &fakeProvider{name: "p1", err: errors.New("flaky")}
	f, _, _ := newTestFetcher(p1)

	for _, tf := range models.ValidTimeframes {
		snap, _, err := f.GetQuote(context.Background(), "MSFT", tf, false)
		require.NoError(t, err, tf)
		assert.True(t, known[snap.Provenance], "provenance %q", snap.Provenance)
	}
}

func TestSyntheticDeterminism(t *testing.T) {
	a := SyntheticBars("AAPL", models.Timeframe1M)
	b := SyntheticBars("AAPL", models.Timeframe1M)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Close, b[i].Close)
	}

	c := SyntheticBars("MSFT", models.Timeframe1M)
	assert.NotEqual(t, a[0].Close, c[0].Close, "different symbols diverge")
}
