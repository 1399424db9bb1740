// Package repository defines the storage interfaces the pipeline depends on.
// Concrete implementations live in subpackages (redis, scylla, clickhouse,
// memory); the factory decides which one each service receives, so tests can
// substitute the in-memory versions.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"coach-service/internal/models"
)

var (
	// ErrJobNotFound is returned by Get/Update for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
)

// CounterStore is the shared counter backend for sliding-window admission.
// SlidingWindow atomically drops events older than window, counts the rest,
// and records the new event iff count < limit. oldestMs is the epoch-ms
// timestamp of the oldest event still in the window (0 when empty); the
// caller derives the reset time from it.
type CounterStore interface {
	SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count int, oldestMs int64, err error)
}

// JobStore persists Job records. Update must be atomic with respect to
// concurrent callers for the same id: a write against a terminal status is
// ignored and the stored job returned unchanged. applied reports whether the
// transition actually took effect, so completion side effects can run
// exactly once even under at-least-once callback delivery.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, id string, status models.JobStatus, result json.RawMessage, errMsg string) (job *models.Job, applied bool, err error)
}

// IdeaStore persists derived idea records produced by completed validation
// jobs. All writes here are secondary: callers log and swallow failures.
type IdeaStore interface {
	SaveIdea(ctx context.Context, rec *models.IdeaRecord) error
	RecentIdeas(ctx context.Context, limit int) ([]*models.IdeaRecord, error)
}

// AttemptSink receives provider attempt records. Implementations must not
// block the caller; dropping records under pressure is acceptable.
type AttemptSink interface {
	Record(attempt models.ProviderAttempt)
}
