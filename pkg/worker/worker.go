// Package worker offloads heavy record processing to a bounded pool of
// background goroutines, with a synchronous in-process fallback that
// runs the identical logic. Both implementations sit behind the
// Executor interface so callers select one at composition time and get
// the same results either way.
//
// Communication with a running task is strictly message passing: the
// input batch goes in, progress notifications and one final result come
// out. A task that outlives its deadline is abandoned: its slot is
// freed and its eventual result dropped, so result handling must be,
// and is, an idempotent no-op after abandonment.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rosterkit/rosterkit/pkg/identity"
	"github.com/rosterkit/rosterkit/pkg/record"
)

// Kind names one of the operations a task can carry.
type Kind string

const (
	// KindDeriveFields computes the derived attributes for every record.
	KindDeriveFields Kind = "derive_fields"

	// KindRegionalFilter restricts records to the caller's regions.
	KindRegionalFilter Kind = "regional_filter"

	// KindProcess derives fields and then applies the regional filter.
	KindProcess Kind = "process"
)

var (
	// ErrTaskTimeout is returned when a task exceeds its deadline. The
	// underlying computation is not guaranteed to stop immediately, but
	// its result is ignored.
	ErrTaskTimeout = errors.New("task exceeded its deadline")

	// ErrPoolClosed is returned for tasks submitted to, or still queued
	// in, a closed pool.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrUnknownKind is returned for an operation kind the executor
	// does not recognize.
	ErrUnknownKind = errors.New("unknown operation kind")
)

// Options parameterize a task.
type Options struct {
	// Now is the reference time for derivations. Zero means the wall
	// clock at execution time; callers that cache or deduplicate
	// results should pin it.
	Now time.Time

	// Identity is the caller on whose behalf regional filtering runs.
	Identity identity.Identity
}

// Progress is one advisory notification from a running task. Tasks emit
// zero or more of them before completing; delivery is best effort.
type Progress struct {
	TaskID  string
	Percent float64
	Message string
}

// ProgressFunc receives progress notifications. It is invoked from the
// goroutine that called Execute, never concurrently with itself.
type ProgressFunc func(Progress)

// Stats describes a completed task.
type Stats struct {
	InputCount  int
	OutputCount int
	Duration    time.Duration
}

// Result is a task's final output.
type Result struct {
	TaskID  string
	Kind    Kind
	Records []record.Record
	Stats   Stats
}

// Executor runs record-processing operations. Implementations must
// produce identical Records for identical inputs regardless of how they
// schedule the work.
type Executor interface {
	// Execute runs one operation over records and blocks until it
	// completes, fails, or times out. onProgress may be nil.
	Execute(ctx context.Context, kind Kind, records []record.Record, opts Options, onProgress ProgressFunc) (*Result, error)

	// Name identifies the execution route for provenance metadata.
	Name() string

	// Available reports whether the executor accepts new tasks.
	Available() bool

	// Close releases resources. Execute calls after Close fail.
	Close()
}
