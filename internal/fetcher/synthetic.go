package fetcher

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/kmorwood/sieve/internal/clients"
	"github.com/kmorwood/sieve/internal/models"
)

// SyntheticBars generates a deterministic placeholder series seeded from
// the symbol. Two calls for the same symbol and timeframe produce
// identical bars, so repeated degraded scans stay stable.
func SyntheticBars(symbol string, tf models.Timeframe) []models.Bar {
	count := clients.BarBudget(tf)
	if count <= 0 || count > 252 {
		count = 252
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	// Base price in [10, 510), walked backwards in time.
	price := 10 + rng.Float64()*500
	day := midnightUTC(time.Now())

	bars := make([]models.Bar, count)
	for i := 0; i < count; i++ {
		drift := (rng.Float64() - 0.5) * 0.04 // ±2% daily move
		open := price * (1 - drift/2)
		high := price * (1 + rng.Float64()*0.01)
		low := price * (1 - rng.Float64()*0.01)
		if high < price {
			high = price
		}
		if low > price {
			low = price
		}

		bars[i] = models.Bar{
			Date:   day,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 50000 + rng.Int63n(1000000),
		}

		price *= 1 - drift
		day = previousWeekday(day)
	}

	return bars
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func previousWeekday(t time.Time) time.Time {
	t = t.AddDate(0, 0, -1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
