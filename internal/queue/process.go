package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

// ApplyFunc replays one queued operation against the server.
type ApplyFunc func(ctx context.Context, op *models.PendingOperation) error

type ProcessOptions struct {
	// RemoveOnSuccess deletes an operation once applied.
	RemoveOnSuccess bool
	// StopOnError aborts the drain at the first failure instead of
	// continuing with the remaining operations.
	StopOnError bool
	// MaxAttempts caps retries per operation; operations at the cap are
	// skipped and left in the queue for manual intervention. Zero means
	// DefaultMaxAttempts.
	MaxAttempts int
}

type OperationError struct {
	OperationID string
	Err         error
}

func (e OperationError) Error() string {
	return fmt.Sprintf("operation %s: %v", e.OperationID, e.Err)
}

type ProcessResult struct {
	Total      int
	Successful int
	Failed     int
	Skipped    int
	Errors     []OperationError
}

// Process drains the current queue snapshot in FIFO order. Each
// operation below the attempt cap gets its counter incremented before
// apply is invoked; failures (including panics in apply) are recorded
// on the operation and are non-fatal to the batch unless StopOnError.
func (q *Queue) Process(ctx context.Context, apply ApplyFunc, opts ProcessOptions) (ProcessResult, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	snapshot := q.Snapshot()
	result := ProcessResult{Total: len(snapshot)}

	for _, op := range snapshot {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if op.Attempts >= maxAttempts {
			result.Skipped++
			q.log.WithField("operation", op.ID).Warn("operation at attempt cap, skipping")
			continue
		}

		// Bump the persisted counter and the local clone together so
		// apply sees the attempt it is part of.
		now := time.Now()
		bump := func(p *models.PendingOperation) {
			p.Attempts++
			p.LastAttempt = &now
		}
		if _, err := q.Update(ctx, op.ID, bump); err != nil {
			return result, err
		}
		bump(op)

		if err := safeApply(ctx, apply, op); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, OperationError{OperationID: op.ID, Err: err})
			if _, uerr := q.Update(ctx, op.ID, func(p *models.PendingOperation) {
				p.LastError = err.Error()
			}); uerr != nil {
				return result, uerr
			}
			q.log.WithField("operation", op.ID).WithError(err).Warn("queued operation failed")
			if opts.StopOnError {
				break
			}
			continue
		}

		result.Successful++
		if opts.RemoveOnSuccess {
			if _, err := q.Remove(ctx, op.ID); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func safeApply(ctx context.Context, apply ApplyFunc, op *models.PendingOperation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("apply panicked: %v", r)
		}
	}()
	return apply(ctx, op)
}
