package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rosterkit/rosterkit/internal/access"
	"github.com/rosterkit/rosterkit/pkg/record"
)

// cancelCheckInterval is how many records a derivation loop processes
// between context checks, so abandoned tasks stop promptly without
// paying a per-record select.
const cancelCheckInterval = 256

// run executes one operation over records. Both the pool workers and the
// inline executor call it, which is what guarantees behavioral parity
// between the two routes.
//
// emit receives 0..N progress notifications; it must not be nil (the
// callers install a discard function when the caller gave none).
func run(ctx context.Context, taskID string, kind Kind, records []record.Record, opts Options, emit func(Progress)) (*Result, error) {
	start := time.Now()
	now := opts.Now
	if now.IsZero() {
		now = start
	}

	var out []record.Record
	switch kind {
	case KindDeriveFields:
		derived, err := deriveAll(ctx, taskID, records, now, emit, 0, 100)
		if err != nil {
			return nil, err
		}
		out = derived
	case KindRegionalFilter:
		filtered, err := filterAll(ctx, taskID, records, opts, emit, 0, 100)
		if err != nil {
			return nil, err
		}
		out = filtered
	case KindProcess:
		derived, err := deriveAll(ctx, taskID, records, now, emit, 0, 80)
		if err != nil {
			return nil, err
		}
		out, err = filterAll(ctx, taskID, derived, opts, emit, 80, 100)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	emit(Progress{TaskID: taskID, Percent: 100, Message: "done"})

	return &Result{
		TaskID:  taskID,
		Kind:    kind,
		Records: out,
		Stats: Stats{
			InputCount:  len(records),
			OutputCount: len(out),
			Duration:    time.Since(start),
		},
	}, nil
}

// deriveAll computes derived attributes record by record, reporting
// progress across the [from, to) percent window and honoring
// cancellation between chunks.
func deriveAll(ctx context.Context, taskID string, records []record.Record, now time.Time, emit func(Progress), from, to float64) ([]record.Record, error) {
	emit(Progress{TaskID: taskID, Percent: from, Message: "deriving fields"})

	out := make([]record.Record, len(records))
	for i, r := range records {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if i > 0 {
				pct := from + (to-from)*float64(i)/float64(len(records))
				emit(Progress{TaskID: taskID, Percent: pct, Message: "deriving fields"})
			}
		}
		out[i] = record.DeriveOne(r, now)
	}
	return out, nil
}

// filterAll applies the regional filter in one shot. The filter is
// all-or-nothing on purpose: chunking it would let a fail-closed chunk
// hide records another chunk already let through.
func filterAll(ctx context.Context, taskID string, records []record.Record, opts Options, emit func(Progress), from, to float64) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emit(Progress{TaskID: taskID, Percent: from, Message: "applying regional filter"})
	out := access.VisibleRecords(records, opts.Identity)
	emit(Progress{TaskID: taskID, Percent: to, Message: "regional filter applied"})
	return out, nil
}

func discardProgress(Progress) {}
