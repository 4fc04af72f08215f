package server

import (
	"net/http"
	"strings"

	"github.com/kmorwood/sieve/internal/models"
	"github.com/kmorwood/sieve/internal/report"
)

// ScanRequest is the POST /api/scan body.
type ScanRequest struct {
	Symbols []string           `json:"symbols,omitempty"`
	Indices []string           `json:"indices,omitempty"`
	Filters *models.FilterSpec `json:"filters,omitempty"`

	// AutoStart launches the job immediately. Defaults to true; set
	// false to create a pending job and start it later.
	AutoStart *bool `json:"auto_start,omitempty"`
}

// ScanCreatedResponse is the POST /api/scan response.
type ScanCreatedResponse struct {
	JobID      string           `json:"job_id"`
	Status     models.JobStatus `json:"status"`
	EstimateMS int64            `json:"estimate_ms,omitempty"`
}

// handleCreateScan handles POST /api/scan.
func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ScanRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	jobID, err := s.app.Scanner.CreateJob(r.Context(), req.Symbols, req.Filters, req.Indices)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ScanCreatedResponse{JobID: jobID, Status: models.JobStatusPending}
	if estimate, err := s.app.Scanner.EstimateDuration(req.Indices); err == nil {
		resp.EstimateMS = estimate.Milliseconds()
	}

	if req.AutoStart == nil || *req.AutoStart {
		if s.app.Scanner.StartJob(r.Context(), jobID) {
			resp.Status = models.JobStatusRunning
		}
	}

	WriteJSON(w, http.StatusAccepted, resp)
}

// handleEstimate handles GET /api/scan/estimate?indices=sp500,dow30.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var indices []string
	if raw := r.URL.Query().Get("indices"); raw != "" {
		for _, index := range strings.Split(raw, ",") {
			if index = strings.TrimSpace(index); index != "" {
				indices = append(indices, index)
			}
		}
	}

	estimate, err := s.app.Scanner.EstimateDuration(indices)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"indices":     indices,
		"estimate_ms": estimate.Milliseconds(),
	})
}

// handleScanStatus handles GET /api/scan/{id}.
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	view, err := s.app.Scanner.GetStatus(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// handleScanStart handles POST /api/scan/{id}/start.
func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !s.app.Scanner.StartJob(r.Context(), id) {
		WriteError(w, http.StatusConflict, "Job is not pending")
		return
	}

	view, err := s.app.Scanner.GetStatus(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// handleScanCancel handles POST /api/scan/{id}/cancel.
func (s *Server) handleScanCancel(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !s.app.Scanner.CancelJob(id) {
		WriteError(w, http.StatusConflict, "Job is not cancellable")
		return
	}

	view, err := s.app.Scanner.GetStatus(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// handleScanPartial handles GET /api/scan/{id}/partial.
func (s *Server) handleScanPartial(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	results, err := s.app.Scanner.GetPartialResults(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  id,
		"matched": len(results),
		"results": results,
	})
}

// handleScanResults handles GET /api/scan/{id}/results.
func (s *Server) handleScanResults(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	results, failed := s.scanResults(w, id)
	if failed {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  id,
		"matched": len(results),
		"results": results,
	})
}

// handleScanExport handles GET /api/scan/{id}/export as CSV.
func (s *Server) handleScanExport(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	results, failed := s.scanResults(w, id)
	if failed {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="scan-`+id+`.csv"`)
	if err := report.WriteCSV(w, results); err != nil {
		s.logger.Warn().Str("job_id", id).Err(err).Msg("CSV export failed mid-stream")
	}
}

// handleScanSummary handles GET /api/scan/{id}/summary.
func (s *Server) handleScanSummary(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if s.app.Summarizer == nil {
		WriteError(w, http.StatusServiceUnavailable, "Summarizer is not configured")
		return
	}

	results, failed := s.scanResults(w, id)
	if failed {
		return
	}

	view, err := s.app.Scanner.GetStatus(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	summary, err := s.app.Summarizer.Summarize(r.Context(), view.Indices, results)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "Summary generation failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  id,
		"matched": len(results),
		"summary": summary,
	})
}

// scanResults fetches final results, writing the appropriate error on
// failure. The second return is true when a response was already sent.
func (s *Server) scanResults(w http.ResponseWriter, id string) ([]models.ScreenResult, bool) {
	results, err := s.app.Scanner.GetResults(id)
	if err != nil {
		if strings.Contains(err.Error(), "unknown job") {
			WriteError(w, http.StatusNotFound, err.Error())
		} else {
			WriteError(w, http.StatusConflict, err.Error())
		}
		return nil, true
	}
	return results, false
}
