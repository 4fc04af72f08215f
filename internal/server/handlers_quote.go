package server

import (
	"net/http"

	"github.com/kmorwood/sieve/internal/models"
	"github.com/kmorwood/sieve/internal/report"
)

// parseTimeframe reads the ?timeframe= query, defaulting to 3M.
func parseTimeframe(w http.ResponseWriter, r *http.Request) (models.Timeframe, bool) {
	raw := r.URL.Query().Get("timeframe")
	if raw == "" {
		return models.Timeframe3M, true
	}
	tf, err := models.ParseTimeframe(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return tf, true
}

// handleQuote handles GET /api/quote/{symbol}?timeframe=3M&refresh=true.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	tf, ok := parseTimeframe(w, r)
	if !ok {
		return
	}
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	snapshot, _, err := s.app.Fetcher.GetQuote(r.Context(), symbol, tf, forceRefresh)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, snapshot)
}

// handleQuoteChart handles GET /api/quote/{symbol}/chart?timeframe=3M,
// returning a rendered PNG.
func (s *Server) handleQuoteChart(w http.ResponseWriter, r *http.Request, symbol string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	tf, ok := parseTimeframe(w, r)
	if !ok {
		return
	}

	snapshot, _, err := s.app.Fetcher.GetQuote(r.Context(), symbol, tf, false)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	png, err := report.RenderPriceChart(snapshot)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
