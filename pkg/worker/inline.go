package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// Inline is the synchronous fallback Executor: it runs the identical
// operation logic in the calling goroutine. Hosts use it when background
// execution is disabled or unavailable; results are indistinguishable
// from the pool's.
type Inline struct {
	closed atomic.Bool
}

var _ Executor = (*Inline)(nil)

// NewInline returns the synchronous executor.
func NewInline() *Inline {
	return &Inline{}
}

// Name implements Executor.
func (e *Inline) Name() string { return "inline" }

// Available implements Executor.
func (e *Inline) Available() bool { return !e.closed.Load() }

// Close implements Executor.
func (e *Inline) Close() { e.closed.Store(true) }

// Execute implements Executor. Progress notifications are delivered
// synchronously as milestones are reached. A context deadline surfaces
// as ErrTaskTimeout so callers observe the same error shape on both
// routes.
func (e *Inline) Execute(ctx context.Context, kind Kind, records []record.Record, opts Options, onProgress ProgressFunc) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrPoolClosed
	}
	emit := discardProgress
	if onProgress != nil {
		emit = func(pr Progress) { onProgress(pr) }
	}

	taskID := ulid.Make().String()
	res, err := run(ctx, taskID, kind, records, opts, emit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskTimeout)
		}
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}
	return res, nil
}
