package loader

import (
	"context"
	"sync"

	"github.com/rosterkit/rosterkit/internal/concurrency"
	"github.com/rosterkit/rosterkit/pkg/identity"
)

// DefaultBatchParallelism bounds how many sources a batch loads at once.
const DefaultBatchParallelism = 4

// BatchOutcome is the per-source outcome of a batch load: exactly one of
// Result and Err is set.
type BatchOutcome struct {
	Result *Result
	Err    error
}

// LoadBatch loads several dataset sources with bounded parallelism and
// returns a per-source outcome map. One source failing does not abort
// the others; cache and single-flight semantics are identical to
// sequential Load calls, so duplicate sources in the batch share one
// underlying load.
func (l *Loader) LoadBatch(ctx context.Context, sources []string, id identity.Identity, opts Options, maxParallel int) (map[string]BatchOutcome, error) {
	if maxParallel < 1 {
		maxParallel = DefaultBatchParallelism
	}

	outcomes := make(map[string]BatchOutcome, len(sources))
	lock := sync.Mutex{}

	pool := concurrency.NewPool(ctx, maxParallel)
	for _, source := range sources {
		pool.Go(func(ctx context.Context) error {
			res, err := l.Load(ctx, source, id, opts)

			lock.Lock()
			outcomes[source] = BatchOutcome{Result: res, Err: err}
			lock.Unlock()

			// Per-source failures live in the outcome map; returning
			// them here would cancel the siblings.
			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
