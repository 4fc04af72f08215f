// Package universe maps market index names to symbol lists and provides
// the dedup and interleave helpers the scheduler builds its queue from.
package universe

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in index symbol lists. Static by design: the engine guarantees no
// freshness beyond cache TTL, and index membership churns far slower than
// that. Lists are representative large-cap samples.
var builtinIndices = map[string][]string{
	"sp500": {
		"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "BRK.B", "LLY", "AVGO", "TSLA",
		"JPM", "V", "XOM", "UNH", "MA", "PG", "COST", "JNJ", "HD", "ABBV",
		"WMT", "MRK", "NFLX", "KO", "BAC", "CRM", "CVX", "AMD", "PEP", "TMO",
		"ORCL", "LIN", "ACN", "ADBE", "MCD", "CSCO", "ABT", "WFC", "IBM", "GE",
		"CAT", "QCOM", "DHR", "VZ", "INTU", "AMGN", "PFE", "TXN", "NOW", "CMCSA",
	},
	"nasdaq100": {
		"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "AVGO", "TSLA", "COST", "NFLX",
		"AMD", "PEP", "ADBE", "CSCO", "QCOM", "INTU", "CMCSA", "TXN", "AMGN", "HON",
		"ISRG", "BKNG", "VRTX", "SBUX", "GILD", "ADI", "MDLZ", "REGN", "PANW", "MU",
		"LRCX", "KLAC", "SNPS", "CDNS", "MELI", "ASML", "CTAS", "MAR", "ORLY", "CSX",
	},
	"dow30": {
		"AAPL", "AMGN", "AMZN", "AXP", "BA", "CAT", "CRM", "CSCO", "CVX", "DIS",
		"GS", "HD", "HON", "IBM", "JNJ", "JPM", "KO", "MCD", "MMM", "MRK",
		"MSFT", "NKE", "NVDA", "PG", "SHW", "TRV", "UNH", "V", "VZ", "WMT",
	},
}

// sectors classifies the built-in large-cap symbols for sector
// screening. Symbols outside the map screen as an empty sector.
var sectors = map[string]string{
	"AAPL": "Technology", "MSFT": "Technology", "NVDA": "Technology", "AVGO": "Technology",
	"AMD": "Technology", "ORCL": "Technology", "ADBE": "Technology", "CSCO": "Technology",
	"CRM": "Technology", "ACN": "Technology", "QCOM": "Technology", "TXN": "Technology",
	"INTU": "Technology", "NOW": "Technology", "IBM": "Technology", "MU": "Technology",
	"PANW": "Technology", "SNPS": "Technology", "CDNS": "Technology", "KLAC": "Technology",
	"LRCX": "Technology", "ADI": "Technology", "ASML": "Technology", "AMZN": "Consumer",
	"TSLA": "Consumer", "HD": "Consumer", "MCD": "Consumer", "NKE": "Consumer",
	"SBUX": "Consumer", "BKNG": "Consumer", "ORLY": "Consumer", "MAR": "Consumer",
	"MELI": "Consumer", "WMT": "Consumer Staples", "PG": "Consumer Staples",
	"COST": "Consumer Staples", "KO": "Consumer Staples", "PEP": "Consumer Staples",
	"MDLZ": "Consumer Staples", "CTAS": "Industrials", "GOOGL": "Communication Services",
	"META": "Communication Services", "NFLX": "Communication Services",
	"CMCSA": "Communication Services", "DIS": "Communication Services",
	"VZ": "Communication Services", "JPM": "Financials", "V": "Financials",
	"MA": "Financials", "BAC": "Financials", "WFC": "Financials", "GS": "Financials",
	"AXP": "Financials", "TRV": "Financials", "BRK.B": "Financials",
	"LLY": "Healthcare", "UNH": "Healthcare", "JNJ": "Healthcare", "ABBV": "Healthcare",
	"MRK": "Healthcare", "TMO": "Healthcare", "ABT": "Healthcare", "DHR": "Healthcare",
	"AMGN": "Healthcare", "PFE": "Healthcare", "ISRG": "Healthcare", "VRTX": "Healthcare",
	"GILD": "Healthcare", "REGN": "Healthcare", "XOM": "Energy", "CVX": "Energy",
	"CAT": "Industrials", "GE": "Industrials", "HON": "Industrials", "BA": "Industrials",
	"MMM": "Industrials", "CSX": "Industrials", "LIN": "Materials", "SHW": "Materials",
}

// Sector returns the sector classification for a symbol, or "" when
// unclassified.
func Sector(symbol string) string {
	return sectors[strings.ToUpper(strings.TrimSpace(symbol))]
}

// Resolver maps index names to deduplicated symbol lists. A pure lookup:
// no provider calls, no state.
type Resolver struct {
	indices map[string][]string
}

// NewResolver creates a resolver over the built-in indices plus any
// custom lists of the form "name:SYM1,SYM2,...".
func NewResolver(custom []string) (*Resolver, error) {
	indices := make(map[string][]string, len(builtinIndices)+len(custom))
	for name, symbols := range builtinIndices {
		indices[name] = symbols
	}

	for _, spec := range custom {
		name, list, ok := strings.Cut(spec, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid custom index %q, want \"name:SYM1,SYM2\"", spec)
		}
		var symbols []string
		for _, s := range strings.Split(list, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		if len(symbols) == 0 {
			return nil, fmt.Errorf("custom index %q has no symbols", name)
		}
		indices[strings.ToLower(name)] = symbols
	}

	return &Resolver{indices: indices}, nil
}

// Resolve returns the deduplicated symbol list for an index name.
// Unknown index names are input errors.
func (r *Resolver) Resolve(index string) ([]string, error) {
	symbols, ok := r.indices[strings.ToLower(strings.TrimSpace(index))]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}
	return Dedup(symbols), nil
}

// Indices returns the known index names, sorted.
func (r *Resolver) Indices() []string {
	names := make([]string, 0, len(r.indices))
	for name := range r.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dedup removes duplicate symbols preserving first-seen order.
func Dedup(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Interleave merges symbol lists round-robin: one symbol from each list
// in turn, skipping duplicates. Sequential concatenation would leave a
// multi-index scan looking stuck on its first index for most of the run;
// interleaving keeps progress representative of every index.
func Interleave(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string

	for i := 0; ; i++ {
		advanced := false
		for _, list := range lists {
			if i >= len(list) {
				continue
			}
			advanced = true
			s := list[i]
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		if !advanced {
			return out
		}
	}
}
