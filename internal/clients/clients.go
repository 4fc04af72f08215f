// Package clients provides shared pieces for the market data provider
// clients: the common API error type and timeframe helpers.
package clients

import (
	"fmt"
	"time"

	"github.com/kmorwood/sieve/internal/models"
)

// APIError represents a provider API error
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status: %d)", e.Provider, e.Message, e.StatusCode)
}

// BarBudget returns how many daily bars a timeframe needs. Trading days,
// not calendar days.
func BarBudget(tf models.Timeframe) int {
	switch tf {
	case models.Timeframe1D:
		return 2 // today plus prior close for change calculations
	case models.Timeframe5D:
		return 5
	case models.Timeframe1M:
		return 22
	case models.Timeframe3M:
		return 66
	case models.Timeframe6M:
		return 132
	case models.TimeframeYTD:
		return ytdTradingDays(time.Now())
	case models.Timeframe1Y:
		return 252
	case models.Timeframe5Y:
		return 1260
	default: // All
		return 0 // unlimited
	}
}

// TrimBars cuts a most-recent-first series down to the timeframe budget.
func TrimBars(bars []models.Bar, tf models.Timeframe) []models.Bar {
	budget := BarBudget(tf)
	if budget <= 0 || len(bars) <= budget {
		return bars
	}
	return bars[:budget]
}

// ytdTradingDays approximates trading days elapsed this year (5/7 of
// calendar days, minimum 2).
func ytdTradingDays(now time.Time) int {
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	days := int(now.Sub(yearStart).Hours()/24) * 5 / 7
	if days < 2 {
		return 2
	}
	return days
}
