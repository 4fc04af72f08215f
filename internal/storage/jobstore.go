// Package storage provides the BadgerHold-backed scan job store. Job
// snapshots are persisted periodically and at terminal transitions so a
// restart can tell which runs a crash interrupted.
package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/models"
)

// JobStore wraps a BadgerHold database holding ScanJob snapshots, keyed
// by job ID.
type JobStore struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewJobStore opens (or creates) the store at the given directory path.
func NewJobStore(logger *common.Logger, path string) (*JobStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Job store opened")

	return &JobStore{db: db, logger: logger}, nil
}

// Save upserts the job snapshot.
func (s *JobStore) Save(_ context.Context, job *models.ScanJob) error {
	if err := s.db.Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job '%s': %w", job.ID, err)
	}
	return nil
}

// Get returns one persisted job by ID.
func (s *JobStore) Get(_ context.Context, id string) (*models.ScanJob, error) {
	var job models.ScanJob
	err := s.db.Get(id, &job)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get job '%s': %w", id, err)
	}
	return &job, nil
}

// List returns every persisted job.
func (s *JobStore) List(_ context.Context) ([]*models.ScanJob, error) {
	var jobs []models.ScanJob
	if err := s.db.Find(&jobs, nil); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	out := make([]*models.ScanJob, len(jobs))
	for i := range jobs {
		out[i] = &jobs[i]
	}
	return out, nil
}

// ListActive returns jobs whose persisted status is non-terminal.
func (s *JobStore) ListActive(_ context.Context) ([]*models.ScanJob, error) {
	var jobs []models.ScanJob
	query := badgerhold.Where("Status").In(models.JobStatusPending, models.JobStatusRunning)
	if err := s.db.Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	out := make([]*models.ScanJob, len(jobs))
	for i := range jobs {
		out[i] = &jobs[i]
	}
	return out, nil
}

// Delete removes one job. Deleting a missing job is not an error.
func (s *JobStore) Delete(_ context.Context, id string) error {
	err := s.db.Delete(id, models.ScanJob{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete job '%s': %w", id, err)
	}
	return nil
}

// PurgeBefore removes terminal jobs completed before the cutoff and
// returns the purge count.
func (s *JobStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("Status").
		In(models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled).
		And("CompletedAt").Lt(cutoff)

	var stale []models.ScanJob
	if err := s.db.Find(&stale, query); err != nil {
		return 0, fmt.Errorf("failed to find stale jobs: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.db.DeleteMatching(&models.ScanJob{}, query); err != nil {
		return 0, fmt.Errorf("failed to purge stale jobs: %w", err)
	}

	s.logger.Debug().Int("count", len(stale)).Msg("Purged stale jobs")
	return len(stale), nil
}

// Close closes the underlying database.
func (s *JobStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
