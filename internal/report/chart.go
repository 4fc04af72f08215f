// Package report renders scan output for humans: PNG price charts and
// CSV exports of screen results.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/kmorwood/sieve/internal/models"
)

// RenderPriceChart renders a PNG line chart of a snapshot's close series
// with its 20-bar moving average overlaid. Returns raw PNG bytes.
func RenderPriceChart(snapshot *models.QuoteSnapshot) ([]byte, error) {
	if len(snapshot.Bars) < 2 {
		return nil, fmt.Errorf("need at least 2 bars to chart %s, got %d", snapshot.Symbol, len(snapshot.Bars))
	}

	// Bars arrive most-recent-first; the chart wants oldest-first.
	n := len(snapshot.Bars)
	xValues := make([]time.Time, n)
	closeY := make([]float64, n)
	for i, bar := range snapshot.Bars {
		xValues[n-1-i] = bar.Date
		closeY[n-1-i] = bar.Close
	}

	closeSeries := chart.TimeSeries{
		Name: snapshot.Symbol,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: closeY,
	}

	smaSeries := chart.SMASeries{
		Name: "SMA 20",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		Period:      20,
		InnerSeries: closeSeries,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (%s)", snapshot.Symbol, snapshot.Timeframe),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			closeSeries,
			smaSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
