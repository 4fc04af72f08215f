// Package scanner runs batch stock scans: each job walks an interleaved
// symbol queue through a bounded worker pool, screens every computed
// snapshot against the job's filter spec, and accumulates matches as
// append-only partial results until a terminal transition freezes them.
package scanner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/interfaces"
	"github.com/kmorwood/sieve/internal/models"
	"github.com/kmorwood/sieve/internal/screen"
	"github.com/kmorwood/sieve/internal/universe"
)

// scanTimeframe is the bar horizon every scan fetches. Three months
// covers the 50-bar SMA and the 14-period DMI warmup with margin.
const scanTimeframe = models.Timeframe3M

// jobState pairs a job with its cancellation handle. The manager's
// mutex guards both.
type jobState struct {
	job    *models.ScanJob
	cancel context.CancelFunc
}

// Manager implements interfaces.ScanService. All job mutation happens
// under mu; workers never touch a job except through the manager.
type Manager struct {
	fetcher  interfaces.QuoteFetcher
	universe interfaces.UniverseResolver
	store    interfaces.JobStore
	logger   *common.Logger
	config   common.ScannerConfig
	hub      *ScanWSHub

	mu   sync.Mutex
	jobs map[string]*jobState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a scan manager. Start must be called before jobs
// will execute.
func NewManager(
	fetcher interfaces.QuoteFetcher,
	resolver interfaces.UniverseResolver,
	store interfaces.JobStore,
	logger *common.Logger,
	config common.ScannerConfig,
) *Manager {
	return &Manager{
		fetcher:  fetcher,
		universe: resolver,
		store:    store,
		logger:   logger,
		config:   config,
		hub:      NewScanWSHub(logger),
		jobs:     make(map[string]*jobState),
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (m *Manager) safeGo(name string, fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in scanner goroutine")
			}
		}()
		fn()
	}()
}

// Start launches the WebSocket hub and the retention loop, and fails
// over any jobs a previous process left non-terminal. In-memory budgets
// and cache died with that process, so interrupted jobs cannot resume
// without double-counting; they are marked failed instead.
func (m *Manager) Start(ctx context.Context) {
	if m.cancel != nil {
		m.Stop()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	if active, err := m.store.ListActive(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to list interrupted jobs at startup")
	} else {
		for _, job := range active {
			job.Status = models.JobStatusFailed
			job.Error = "interrupted by restart"
			job.CompletedAt = time.Now().UTC()
			if err := m.store.Save(ctx, job); err != nil {
				m.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to fail over interrupted job")
			}
		}
		if len(active) > 0 {
			m.logger.Info().Int("count", len(active)).Msg("Marked interrupted jobs as failed")
		}
	}

	m.safeGo("websocket-hub", func() { m.hub.Run() })
	m.safeGo("retention", func() { m.retentionLoop(runCtx) })

	m.logger.Info().
		Int("max_workers", m.config.GetMaxWorkers()).
		Int("publish_every", m.config.GetPublishEvery()).
		Msg("Scan manager started")
}

// Stop cancels running jobs and waits for all goroutines to drain.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	m.mu.Lock()
	for _, st := range m.jobs {
		if st.cancel != nil {
			st.cancel()
		}
	}
	m.mu.Unlock()

	m.hub.Stop()
	m.wg.Wait()
	m.logger.Info().Msg("Scan manager stopped")
}

// Hub exposes the WebSocket hub for handler registration.
func (m *Manager) Hub() *ScanWSHub {
	return m.hub
}

// retentionLoop purges old terminal jobs on an hourly cadence.
func (m *Manager) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldJobs(ctx, m.config.GetRetention())
		}
	}
}

// CreateJob validates the request, builds the interleaved symbol queue,
// and persists the pending job. Input errors return synchronously with
// no job created.
func (m *Manager) CreateJob(ctx context.Context, symbols []string, filters *models.FilterSpec, indices []string) (string, error) {
	if err := filters.Validate(); err != nil {
		return "", err
	}
	if len(symbols) == 0 && len(indices) == 0 {
		return "", fmt.Errorf("scan request needs at least one symbol or index")
	}

	// One list per index plus the explicit symbols, interleaved so
	// progress stays representative of every index.
	lists := make([][]string, 0, len(indices)+1)
	if len(symbols) > 0 {
		lists = append(lists, universe.Dedup(symbols))
	}
	for _, index := range indices {
		resolved, err := m.universe.Resolve(index)
		if err != nil {
			return "", err
		}
		lists = append(lists, resolved)
	}

	queue := universe.Interleave(lists...)
	if len(queue) == 0 {
		return "", fmt.Errorf("scan request resolved to an empty symbol queue")
	}

	job := &models.ScanJob{
		ID:        uuid.New().String(),
		Indices:   indices,
		Filters:   filters,
		Status:    models.JobStatusPending,
		Progress:  models.ScanProgress{Total: len(queue)},
		CreatedAt: time.Now().UTC(),
		Queue:     queue,
	}

	m.mu.Lock()
	m.jobs[job.ID] = &jobState{job: job}
	m.mu.Unlock()

	if err := m.store.Save(ctx, job); err != nil {
		m.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to persist new job")
	}

	m.publish("job_created", job)
	m.logger.Info().
		Str("job_id", job.ID).
		Int("queue", len(queue)).
		Strs("indices", indices).
		Msg("Scan job created")

	return job.ID, nil
}

// StartJob launches the worker pool for a pending job. Returns false if
// the job is unknown or already past pending.
func (m *Manager) StartJob(ctx context.Context, jobID string) bool {
	m.mu.Lock()
	st, ok := m.jobs[jobID]
	if !ok || st.job.Status != models.JobStatusPending {
		m.mu.Unlock()
		return false
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st.cancel = cancel
	st.job.Status = models.JobStatusRunning
	st.job.StartedAt = time.Now().UTC()
	job := st.job
	m.mu.Unlock()

	m.persist(job)
	m.publish("job_started", job)

	m.safeGo("scan-"+jobID, func() { m.run(jobCtx, st) })
	return true
}

// run drives one job through the worker pool to a terminal state.
func (m *Manager) run(ctx context.Context, st *jobState) {
	workers := m.config.GetMaxWorkers()
	symbols := make(chan string)

	var workerWG sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error().
						Str("job_id", st.job.ID).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(debug.Stack())).
						Msg("Recovered from panic in scan worker")
				}
			}()
			for symbol := range symbols {
				m.processSymbol(ctx, st, symbol)
			}
		}()
	}

feed:
	for _, symbol := range st.job.Queue {
		select {
		case <-ctx.Done():
			break feed
		case symbols <- symbol:
		}
	}
	close(symbols)
	workerWG.Wait()

	m.finish(st, ctx.Err() != nil)
}

// processSymbol fetches, screens, and records one symbol. Fetch errors
// are captured per symbol and never abort the job.
func (m *Manager) processSymbol(ctx context.Context, st *jobState, symbol string) {
	snapshot, apiCalls, err := m.fetcher.GetQuote(ctx, symbol, scanTimeframe, false)

	m.mu.Lock()
	job := st.job
	if job.Status != models.JobStatusRunning {
		// Terminal transition already happened; results are frozen.
		m.mu.Unlock()
		return
	}

	job.Progress.Processed++
	job.Progress.APICallsMade += apiCalls

	if err != nil {
		job.Progress.Errors = append(job.Progress.Errors, fmt.Sprintf("%s: %v", symbol, err))
	} else {
		result := toScreenResult(snapshot)
		if screen.Match(result, job.Filters) {
			job.PartialResults = append(job.PartialResults, *result)
		}
	}

	processed := job.Progress.Processed
	m.mu.Unlock()

	if processed%m.config.GetPublishEvery() == 0 {
		m.persist(job)
		m.publish("job_progress", job)
	}
}

// finish moves a running job to completed, or leaves a cancellation in
// place when one already happened.
func (m *Manager) finish(st *jobState, interrupted bool) {
	m.mu.Lock()
	job := st.job
	if job.Status == models.JobStatusRunning {
		if interrupted {
			job.Status = models.JobStatusCancelled
		} else {
			job.Status = models.JobStatusCompleted
		}
		job.CompletedAt = time.Now().UTC()
	}
	status := job.Status
	m.mu.Unlock()

	m.persist(job)
	m.publish("job_"+string(status), job)

	m.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(status)).
		Int("processed", job.Progress.Processed).
		Int("matched", len(job.PartialResults)).
		Int("api_calls", job.Progress.APICallsMade).
		Msg("Scan job finished")
}

// CancelJob requests cooperative cancellation. The terminal transition
// is immediate; in-flight workers observe it and drop their results.
func (m *Manager) CancelJob(jobID string) bool {
	m.mu.Lock()
	st, ok := m.jobs[jobID]
	if !ok || st.job.Status.Terminal() {
		m.mu.Unlock()
		return false
	}

	st.job.Status = models.JobStatusCancelled
	st.job.CompletedAt = time.Now().UTC()
	if st.cancel != nil {
		st.cancel()
	}
	job := st.job
	m.mu.Unlock()

	m.persist(job)
	m.publish("job_cancelled", job)
	return true
}

// GetStatus returns a read-only snapshot of the job's state.
func (m *Manager) GetStatus(jobID string) (*models.JobStatusView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", jobID)
	}

	job := st.job
	view := &models.JobStatusView{
		ID:          job.ID,
		Indices:     append([]string(nil), job.Indices...),
		Status:      job.Status,
		Progress:    copyProgress(job.Progress),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
		Matched:     len(job.PartialResults),
	}
	return view, nil
}

// GetPartialResults returns a copy of results accumulated so far. Valid
// in any state; for a running job the next call may return more.
func (m *Manager) GetPartialResults(jobID string) ([]models.ScreenResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", jobID)
	}
	return append([]models.ScreenResult(nil), st.job.PartialResults...), nil
}

// GetResults returns the final result set. Only valid once completed.
func (m *Manager) GetResults(jobID string) ([]models.ScreenResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", jobID)
	}
	if st.job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("job %q is %s, results require completed", jobID, st.job.Status)
	}
	return append([]models.ScreenResult(nil), st.job.PartialResults...), nil
}

// CleanupOldJobs drops terminal jobs older than maxAge from memory and
// the store. Returns the number removed from memory.
func (m *Manager) CleanupOldJobs(ctx context.Context, maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	removed := 0
	for id, st := range m.jobs {
		if st.job.Status.Terminal() && !st.job.CompletedAt.IsZero() && st.job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	m.mu.Unlock()

	purged, err := m.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to purge old jobs from store")
	}

	if removed > 0 || purged > 0 {
		m.logger.Info().
			Int("memory", removed).
			Int("store", purged).
			Msg("Cleaned up old scan jobs")
	}
	return removed
}

// persist saves the job snapshot, tolerating store failures: the job
// keeps running on memory state and the next publish retries.
func (m *Manager) persist(job *models.ScanJob) {
	m.mu.Lock()
	snapshot := *job
	snapshot.Queue = append([]string(nil), job.Queue...)
	snapshot.PartialResults = append([]models.ScreenResult(nil), job.PartialResults...)
	snapshot.Progress = copyProgress(job.Progress)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Save(ctx, &snapshot); err != nil {
		m.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to persist job snapshot")
	}
}

// publish broadcasts a job event to WebSocket subscribers.
func (m *Manager) publish(eventType string, job *models.ScanJob) {
	m.mu.Lock()
	event := models.JobEvent{
		Type:      eventType,
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  copyProgress(job.Progress),
		Matched:   len(job.PartialResults),
		Timestamp: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.hub.Broadcast(event)
}

func copyProgress(p models.ScanProgress) models.ScanProgress {
	out := p
	out.Errors = append([]string(nil), p.Errors...)
	return out
}

// toScreenResult flattens a snapshot into the filterable view.
func toScreenResult(s *models.QuoteSnapshot) *models.ScreenResult {
	ind := s.Indicators
	return &models.ScreenResult{
		Symbol:       s.Symbol,
		Sector:       universe.Sector(s.Symbol),
		Price:        s.LatestClose(),
		DMIComposite: ind.DMIComposite,
		ADX:          ind.ADX,
		PPOHistory:   ind.PPOHistory,
		PPOSlopePct:  ind.PPOSlopePct,
		PPOHook:      ind.PPOHook,
		Return5D:     ind.Return5D,
		Return20D:    ind.Return20D,
		VolumeRatio:  ind.VolumeRatio,
		Provenance:   s.Provenance,
		DataQuality:  ind.Quality,
		ComputedAt:   s.ComputedAt,
	}
}
