package job

import (
	"context"
	"time"
)

// Store persists jobs. Implementations must be safe for concurrent use.
//
// Claim is the per-job lock that gives at-most-once processing: it succeeds
// only when the job is unclaimed or the previous lease has expired.
type Store interface {
	// Create persists a new job.
	Create(ctx context.Context, j *Job) error

	// Get returns a job or export.ErrJobNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// List returns jobs matching f, newest first.
	List(ctx context.Context, f Filter) ([]*Job, error)

	// Update writes the progress and status fields of j. It never clears a
	// cancellation request and never touches the claim. When j.LockedBy is
	// set the write only succeeds while that owner still holds the claim,
	// otherwise it returns export.ErrJobLocked.
	Update(ctx context.Context, j *Job) error

	// UpdateTransfer records the delivery state of a job.
	UpdateTransfer(ctx context.Context, id string, status TransferStatus, message string) error

	// Claim locks the job for owner until now+ttl. It returns
	// export.ErrJobLocked when another owner holds a live claim. Claiming a
	// job the owner already holds renews the lease.
	Claim(ctx context.Context, id, owner string, now time.Time, ttl time.Duration) (*Job, error)

	// Release drops owner's claim. Releasing a claim that is not held is a no-op.
	Release(ctx context.Context, id, owner string) error

	// RequestCancel flags the job for cancellation.
	RequestCancel(ctx context.Context, id string) error

	// Delete removes a job. Deleting a missing job is a no-op.
	Delete(ctx context.Context, id string) error

	// Close releases the store's resources.
	Close() error
}
