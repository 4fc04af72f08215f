package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorwood/sieve/internal/models"
)

func TestWriteCSV(t *testing.T) {
	results := []models.ScreenResult{
		{
			Symbol:       "AAPL",
			Sector:       "Technology",
			Price:        182.3,
			DMIComposite: 35.5,
			ADX:          22.1,
			PPOSlopePct:  1.25,
			PPOHook:      models.HookPositive,
			Return20D:    4.2,
			Provenance:   models.ProvenancePrimary,
			DataQuality:  models.QualityStandard,
			ComputedAt:   time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC),
		},
		{
			Symbol:      "XOM",
			Sector:      "Energy",
			Price:       110.0,
			PPOHook:     models.HookNone,
			Provenance:  models.ProvenanceSynthetic,
			DataQuality: models.QualityAdaptive,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "header plus one row per result")
	assert.True(t, strings.HasPrefix(lines[0], "symbol,sector,price"))
	assert.Contains(t, lines[1], "AAPL,Technology,182.30")
	assert.Contains(t, lines[1], "positive")
	assert.Contains(t, lines[1], "2026-08-28T14:30:00Z")
	assert.Contains(t, lines[2], "XOM,Energy,110.00")
	assert.Contains(t, lines[2], "synthetic")
}

func TestWriteCSVEmptyResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1, "empty scan still exports the header")
}

func TestRenderPriceChart(t *testing.T) {
	bars := make([]models.Bar, 60)
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	price := 150.0
	for i := range bars {
		bars[i] = models.Bar{Date: date.AddDate(0, 0, -i), Close: price}
		price *= 0.999
	}

	snapshot := &models.QuoteSnapshot{
		Symbol:    "AAPL",
		Timeframe: models.Timeframe3M,
		Bars:      bars,
	}

	png, err := RenderPriceChart(snapshot)
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.Equal(t, "\x89PNG", string(png[:4]), "output is a PNG")
}

func TestRenderPriceChartTooFewBars(t *testing.T) {
	snapshot := &models.QuoteSnapshot{
		Symbol: "AAPL",
		Bars:   []models.Bar{{Close: 100}},
	}
	_, err := RenderPriceChart(snapshot)
	assert.Error(t, err)
}
