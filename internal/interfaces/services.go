package interfaces

import (
	"context"
	"time"

	"github.com/kmorwood/sieve/internal/models"
)

// QuoteFetcher resolves a symbol to a computed snapshot via cache, the
// provider fallback chain, and synthetic degradation. It never fails for
// data unavailability, only for malformed input. apiCalls reports how
// many provider requests this call issued (0 on a cache hit) so job
// progress can account for budget consumption.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string, tf models.Timeframe, forceRefresh bool) (snapshot *models.QuoteSnapshot, apiCalls int, err error)
}

// UniverseResolver maps an index name to its symbol list.
type UniverseResolver interface {
	Resolve(index string) ([]string, error)
	Indices() []string
}

// ScanService is the exposed surface of the batch scanning engine.
// Downstream consumers (HTTP layer, CSV exporter, summarizer) read only
// through this interface and never mutate job state directly.
type ScanService interface {
	// CreateJob validates input, resolves and interleaves the symbol
	// universe, and persists the initial job. Input errors are returned
	// synchronously and no job is created.
	CreateJob(ctx context.Context, symbols []string, filters *models.FilterSpec, indices []string) (string, error)

	// StartJob launches the worker pool for a pending job. Returns false
	// if the job is unknown or not pending.
	StartJob(ctx context.Context, jobID string) bool

	GetStatus(jobID string) (*models.JobStatusView, error)
	GetPartialResults(jobID string) ([]models.ScreenResult, error)

	// GetResults is valid only once the job is completed.
	GetResults(jobID string) ([]models.ScreenResult, error)

	// CancelJob requests cooperative cancellation. Valid only while
	// pending or running.
	CancelJob(jobID string) bool

	// EstimateDuration predicts a scan's runtime from per-index
	// historical cost, discounting multi-index overlap.
	EstimateDuration(indices []string) (time.Duration, error)

	CleanupOldJobs(ctx context.Context, maxAge time.Duration) int
}
