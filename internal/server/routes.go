package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/kmorwood/sieve/internal/common"
)

// registerRoutes wires every endpoint to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/indices", s.handleIndices)

	mux.HandleFunc("/api/scan", s.handleCreateScan)
	mux.HandleFunc("/api/scan/estimate", s.handleEstimate)
	mux.HandleFunc("/api/scan/", s.handleScanSubroutes)

	mux.HandleFunc("/api/quote/", s.handleQuoteSubroutes)

	mux.HandleFunc("/ws/scan", s.app.Scanner.Hub().ServeWS)
}

// handleScanSubroutes dispatches /api/scan/{id}[/action].
func (s *Server) handleScanSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/scan/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		WriteError(w, http.StatusNotFound, "Job ID required")
		return
	}

	switch action {
	case "":
		s.handleScanStatus(w, r, id)
	case "start":
		s.handleScanStart(w, r, id)
	case "cancel":
		s.handleScanCancel(w, r, id)
	case "partial":
		s.handleScanPartial(w, r, id)
	case "results":
		s.handleScanResults(w, r, id)
	case "export":
		s.handleScanExport(w, r, id)
	case "summary":
		s.handleScanSummary(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Unknown scan action: "+action)
	}
}

// handleQuoteSubroutes dispatches /api/quote/{symbol}[/chart].
func (s *Server) handleQuoteSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/quote/")
	symbol, action, _ := strings.Cut(rest, "/")
	if symbol == "" {
		WriteError(w, http.StatusNotFound, "Symbol required")
		return
	}

	switch action {
	case "":
		s.handleQuote(w, r, symbol)
	case "chart":
		s.handleQuoteChart(w, r, symbol)
	default:
		WriteError(w, http.StatusNotFound, "Unknown quote action: "+action)
	}
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"environment":    s.app.Config.Environment,
		"uptime_seconds": int(time.Since(s.app.StartupTime).Seconds()),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"commit":  common.GitCommit,
	})
}

// handleIndices handles GET /api/indices.
func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"indices": s.app.Universe.Indices(),
	})
}
