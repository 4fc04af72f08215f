package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/kmorwood/sieve/internal/models"
)

// csvHeader is the stable column order for exports. Consumers pin
// columns by name, so additions go at the end.
var csvHeader = []string{
	"symbol", "sector", "price",
	"dmi_composite", "adx",
	"ppo_slope_pct", "ppo_hook",
	"return_5d_pct", "return_20d_pct", "volume_ratio",
	"provenance", "data_quality", "computed_at",
}

// WriteCSV streams screen results as CSV, header first.
func WriteCSV(w io.Writer, results []models.ScreenResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range results {
		record := []string{
			r.Symbol,
			r.Sector,
			strconv.FormatFloat(r.Price, 'f', 2, 64),
			strconv.FormatFloat(r.DMIComposite, 'f', 2, 64),
			strconv.FormatFloat(r.ADX, 'f', 2, 64),
			strconv.FormatFloat(r.PPOSlopePct, 'f', 4, 64),
			string(r.PPOHook),
			strconv.FormatFloat(r.Return5D, 'f', 2, 64),
			strconv.FormatFloat(r.Return20D, 'f', 2, 64),
			strconv.FormatFloat(r.VolumeRatio, 'f', 2, 64),
			string(r.Provenance),
			string(r.DataQuality),
			r.ComputedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", r.Symbol, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
