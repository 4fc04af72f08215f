package interfaces

import (
	"context"
	"time"

	"github.com/kmorwood/sieve/internal/models"
)

// JobStore persists scan job snapshots for crash recovery. Persistence is
// periodic plus at every terminal transition; it is not a cross-process
// coordination mechanism.
type JobStore interface {
	Save(ctx context.Context, job *models.ScanJob) error
	Get(ctx context.Context, id string) (*models.ScanJob, error)
	List(ctx context.Context) ([]*models.ScanJob, error)

	// ListActive returns jobs whose persisted status is non-terminal,
	// used at startup to detect runs interrupted by a crash.
	ListActive(ctx context.Context) ([]*models.ScanJob, error)

	Delete(ctx context.Context, id string) error

	// PurgeBefore removes terminal jobs completed before the cutoff and
	// returns the purge count.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}
