package queue

import (
	"context"
	"time"
)

// Queue is the durable job store contract required by spec.md §4.3's
// "concurrency floor": atomic lease acquisition, progress updates without
// state transition, terminal transitions with a result payload, and
// idempotent enqueue by jobId.
type Queue interface {
	// Enqueue admits a task, creating a waiting job. If a job with this
	// task's ID already exists, Enqueue is a no-op and returns the
	// existing job with created=false.
	Enqueue(ctx context.Context, task Task) (job *Job, created bool, err error)

	// Lease atomically moves the oldest waiting job to active and returns
	// it, or returns (nil, nil) if the waiting set is empty.
	Lease(ctx context.Context) (*Job, error)

	// UpdateProgress writes a progress snapshot without changing state.
	// Sub-stage regressions in the raw Percent are real (a later stage can
	// legitimately report a lower number than an earlier one), so the
	// queue tracks the high-water mark alongside the raw value in
	// Job.MaxPercent; callers read Job.DisplayPercent for the clamped view.
	UpdateProgress(ctx context.Context, jobID string, p Progress) error

	// Complete transitions active -> completed, recording the result
	// (which may itself describe a logical failure; the surface collapses
	// that to "failed" on read).
	Complete(ctx context.Context, jobID string, result Result) error

	// Fail transitions active -> failed for an unhandled worker error.
	Fail(ctx context.Context, jobID string, message string) error

	// Get returns the current job record, or nil if it doesn't exist
	// (removed, expired, or never admitted).
	Get(ctx context.Context, jobID string) (*Job, error)

	// Delete removes a job and returns it. Returns ErrActiveJob if the job
	// is currently active (spec.md: DELETE on an active job is rejected).
	Delete(ctx context.Context, jobID string) (*Job, error)

	// QueuePosition returns this job's 1-based position within the first
	// 100 waiting jobs (0 if not waiting or beyond the scan bound), and
	// the total of waiting+active jobs.
	QueuePosition(ctx context.Context, jobID string) (position, total int, err error)

	// RateLimitAllow atomically increments the counter for key within
	// window and reports whether the caller is within capacity. If not,
	// retryAfter is how long until the window resets.
	RateLimitAllow(ctx context.Context, key string, capacity int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)

	// TrimRetention enforces the queue-side count cap from spec.md §3: the
	// completed and failed indexes are trimmed to their newest 1000 entries
	// each. The 24h/7d age caps are enforced by the record TTL set when a
	// job finishes, not here.
	TrimRetention(ctx context.Context) error

	Close() error
}

const maxQueuePositionScan = 100
const maxRetainedPerState = 1000

// ArtifactRetention returns how long a finished job's queue record
// survives: 24h for a completed build, 7d for a failed one, matching
// spec.md §3's retention table. The artifact file on disk is governed
// separately by the sweeper's retention.
func ArtifactRetention(failed bool) time.Duration {
	if failed {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}
