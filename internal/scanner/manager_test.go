package scanner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/models"
)

// fakeFetcher returns canned snapshots with optional per-symbol failures
// and latency, so tests can observe jobs mid-flight.
type fakeFetcher struct {
	delay time.Duration
	fail  map[string]bool

	mu    sync.Mutex
	calls int
}

func (f *fakeFetcher) GetQuote(ctx context.Context, symbol string, tf models.Timeframe, _ bool) (*models.QuoteSnapshot, int, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.fail[symbol] {
		return nil, 1, fmt.Errorf("symbol must not be empty")
	}

	return &models.QuoteSnapshot{
		Symbol:    symbol,
		Timeframe: tf,
		Bars:      []models.Bar{{Close: 50.0}},
		Indicators: models.IndicatorBundle{
			DMIComposite: 35.5,
			PPOSlopePct:  1.0,
			PPOHook:      models.HookNone,
			Quality:      models.QualityStandard,
		},
		Provenance: models.ProvenancePrimary,
		ComputedAt: time.Now().UTC(),
	}, 1, nil
}

// fakeResolver serves fixed index lists.
type fakeResolver struct {
	indices map[string][]string
}

func (r *fakeResolver) Resolve(index string) ([]string, error) {
	symbols, ok := r.indices[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}
	return symbols, nil
}

func (r *fakeResolver) Indices() []string {
	names := make([]string, 0, len(r.indices))
	for name := range r.indices {
		names = append(names, name)
	}
	return names
}

// memStore is an in-memory JobStore.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ScanJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*models.ScanJob)}
}

func (s *memStore) Save(_ context.Context, job *models.ScanJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	clone := *job
	return &clone, nil
}

func (s *memStore) List(_ context.Context) ([]*models.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ScanJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		clone := *job
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memStore) ListActive(_ context.Context) ([]*models.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ScanJob
	for _, job := range s.jobs {
		if !job.Status.Terminal() {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *memStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && !job.CompletedAt.IsZero() && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Close() error { return nil }

func testConfig() common.ScannerConfig {
	return common.ScannerConfig{MaxWorkers: 2, PublishEvery: 2, RetentionHours: 24}
}

func newTestManager(fetcher *fakeFetcher, store *memStore) *Manager {
	resolver := &fakeResolver{indices: map[string][]string{
		"alpha": {"AAA", "BBB", "CCC"},
		"beta":  {"BBB", "DDD"},
	}}
	return NewManager(fetcher, resolver, store, common.NewSilentLogger(), testConfig())
}

func waitTerminal(t *testing.T, m *Manager, jobID string) *models.JobStatusView {
	t.Helper()
	var view *models.JobStatusView
	require.Eventually(t, func() bool {
		v, err := m.GetStatus(jobID)
		if err != nil {
			return false
		}
		view = v
		return v.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return view
}

func TestCreateJobValidation(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, newMemStore())

	tests := []struct {
		name    string
		symbols []string
		filters *models.FilterSpec
		indices []string
	}{
		{"empty request", nil, nil, nil},
		{"unknown index", nil, nil, []string{"ftse100"}},
		{"malformed filter", []string{"AAA"}, &models.FilterSpec{Hook: "sideways"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateJob(context.Background(), tt.symbols, tt.filters, tt.indices)
			assert.Error(t, err)
		})
	}
}

func TestCreateJobInterleavesIndices(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, newMemStore())

	id, err := m.CreateJob(context.Background(), nil, nil, []string{"alpha", "beta"})
	require.NoError(t, err)

	m.mu.Lock()
	queue := append([]string(nil), m.jobs[id].job.Queue...)
	m.mu.Unlock()

	// Round-robin across alpha and beta, duplicate BBB kept once.
	assert.Equal(t, []string{"AAA", "BBB", "DDD", "CCC"}, queue)

	view, err := m.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, view.Status)
	assert.Equal(t, 4, view.Progress.Total)
	assert.Zero(t, view.Progress.Processed)
}

func TestStartJobRequiresPending(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, newMemStore())

	assert.False(t, m.StartJob(context.Background(), "no-such-job"))

	id, err := m.CreateJob(context.Background(), []string{"AAA"}, nil, nil)
	require.NoError(t, err)
	require.True(t, m.StartJob(context.Background(), id))
	waitTerminal(t, m, id)

	assert.False(t, m.StartJob(context.Background(), id), "terminal job cannot restart")
}

func TestJobRunsToCompletion(t *testing.T) {
	store := newMemStore()
	m := newTestManager(&fakeFetcher{}, store)

	id, err := m.CreateJob(context.Background(), nil, nil, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.True(t, m.StartJob(context.Background(), id))

	view := waitTerminal(t, m, id)
	assert.Equal(t, models.JobStatusCompleted, view.Status)
	assert.Equal(t, view.Progress.Total, view.Progress.Processed)
	assert.Equal(t, 4, view.Matched, "no filter admits every symbol")
	assert.Equal(t, 4, view.Progress.APICallsMade)
	assert.False(t, view.CompletedAt.IsZero())

	results, err := m.GetResults(id)
	require.NoError(t, err)
	assert.Len(t, results, 4)

	// A terminal transition persists the final snapshot.
	saved, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, saved.Status)
}

func TestFilterAppliedDuringScan(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, newMemStore())

	// Fake snapshots all carry composite 35.5; a band excluding it
	// matches nothing.
	filters := &models.FilterSpec{DMI: &models.DMIFilter{Min: 50, Max: 60}}
	id, err := m.CreateJob(context.Background(), nil, filters, []string{"alpha"})
	require.NoError(t, err)
	require.True(t, m.StartJob(context.Background(), id))

	view := waitTerminal(t, m, id)
	assert.Equal(t, models.JobStatusCompleted, view.Status)
	assert.Equal(t, 3, view.Progress.Processed)
	assert.Zero(t, view.Matched)
}

func TestSymbolErrorsAreCapturedNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]bool{"BBB": true}}
	m := newTestManager(fetcher, newMemStore())

	id, err := m.CreateJob(context.Background(), nil, nil, []string{"alpha"})
	require.NoError(t, err)
	require.True(t, m.StartJob(context.Background(), id))

	view := waitTerminal(t, m, id)
	assert.Equal(t, models.JobStatusCompleted, view.Status)
	assert.Equal(t, 3, view.Progress.Processed)
	assert.Equal(t, 2, view.Matched)
	require.Len(t, view.Progress.Errors, 1)
	assert.Contains(t, view.Progress.Errors[0], "BBB")
}

func TestProgressMonotoneAndBounded(t *testing.T) {
	fetcher := &fakeFetcher{delay: 10 * time.Millisecond}
	m := newTestManager(fetcher, newMemStore())

	id, err := m.CreateJob(context.Background(), nil, nil, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.True(t, m.StartJob(context.Background(), id))

	lastProcessed := 0
	lastPartial := 0
	for {
		view, err := m.GetStatus(id)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, view.Progress.Processed, lastProcessed, "processed never decreases")
		assert.LessOrEqual(t, view.Progress.Processed, view.Progress.Total, "processed never exceeds total")
		lastProcessed = view.Progress.Processed

		partial, err := m.GetPartialResults(id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(partial), lastPartial, "partial results are append-only")
		lastPartial = len(partial)

		if view.Status.Terminal() {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestCancelFreezesPartialResults(t *testing.T) {
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	m := newTestManager(fetcher, newMemStore())

	id, err := m.CreateJob(context.Background(), nil, nil, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.True(t, m.StartJob(context.Background(), id))

	time.Sleep(30 * time.Millisecond)
	require.True(t, m.CancelJob(id))

	view, err := m.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, view.Status)

	frozen, err := m.GetPartialResults(id)
	require.NoError(t, err)

	// Let in-flight workers drain, then confirm nothing was appended.
	time.Sleep(100 * time.Millisecond)
	after, err := m.GetPartialResults(id)
	require.NoError(t, err)
	assert.Equal(t, len(frozen), len(after), "results frozen at cancellation")

	_, err = m.GetResults(id)
	assert.Error(t, err, "final results require completed")

	assert.False(t, m.CancelJob(id), "cancel is not idempotent on terminal jobs")
}

func TestCancelPendingJob(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, newMemStore())

	id, err := m.CreateJob(context.Background(), []string{"AAA"}, nil, nil)
	require.NoError(t, err)
	require.True(t, m.CancelJob(id))

	view, err := m.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, view.Status)
	assert.False(t, m.StartJob(context.Background(), id))
}

func TestGetResultsRequiresCompleted(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, newMemStore())

	id, err := m.CreateJob(context.Background(), []string{"AAA"}, nil, nil)
	require.NoError(t, err)

	_, err = m.GetResults(id)
	assert.Error(t, err, "pending job has no final results")

	_, err = m.GetResults("no-such-job")
	assert.Error(t, err)
}

func TestCleanupOldJobs(t *testing.T) {
	store := newMemStore()
	m := newTestManager(&fakeFetcher{}, store)

	id, err := m.CreateJob(context.Background(), []string{"AAA"}, nil, nil)
	require.NoError(t, err)
	require.True(t, m.StartJob(context.Background(), id))
	waitTerminal(t, m, id)

	// Fresh terminal job survives cleanup.
	assert.Zero(t, m.CleanupOldJobs(context.Background(), time.Hour))

	m.mu.Lock()
	m.jobs[id].job.CompletedAt = time.Now().UTC().Add(-2 * time.Hour)
	m.mu.Unlock()

	assert.Equal(t, 1, m.CleanupOldJobs(context.Background(), time.Hour))
	_, err = m.GetStatus(id)
	assert.Error(t, err, "cleaned-up job is gone")
}

func TestStartupFailsOverInterruptedJobs(t *testing.T) {
	store := newMemStore()
	interrupted := &models.ScanJob{
		ID:        "stale-1",
		Status:    models.JobStatusRunning,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		Queue:     []string{"AAA"},
	}
	require.NoError(t, store.Save(context.Background(), interrupted))

	m := newTestManager(&fakeFetcher{}, store)
	m.Start(context.Background())
	defer m.Stop()

	saved, err := store.Get(context.Background(), "stale-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, saved.Status)
	assert.Equal(t, "interrupted by restart", saved.Error)
}

func TestEstimateDuration(t *testing.T) {
	m := newTestManager(&fakeFetcher{}, newMemStore())

	single, err := m.EstimateDuration([]string{"alpha"})
	require.NoError(t, err)
	assert.Greater(t, single, time.Duration(0))

	// Two indices get the overlap discount: less than the sum of parts.
	both, err := m.EstimateDuration([]string{"alpha", "beta"})
	require.NoError(t, err)
	solo, err := m.EstimateDuration([]string{"beta"})
	require.NoError(t, err)
	assert.Less(t, both, single+solo)

	_, err = m.EstimateDuration([]string{"ftse100"})
	assert.Error(t, err)

	empty, err := m.EstimateDuration(nil)
	require.NoError(t, err)
	assert.Zero(t, empty)
}
