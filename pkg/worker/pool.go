package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rosterkit/rosterkit/internal/build"
	"github.com/rosterkit/rosterkit/internal/concurrency"
	"github.com/rosterkit/rosterkit/pkg/logger"
	"github.com/rosterkit/rosterkit/pkg/record"
)

const (
	// maxPoolSize caps the worker count regardless of configuration;
	// record batches are coarse-grained enough that more workers only
	// add scheduling noise.
	maxPoolSize = 8

	// DefaultQueueDepth is the default capacity of the FIFO task queue.
	DefaultQueueDepth = 64

	// DefaultTaskTimeout is the default per-task deadline.
	DefaultTaskTimeout = 30 * time.Second
)

var (
	taskDispatchedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "worker_task_dispatched_count",
		Help:      "The total number of tasks dispatched to pool workers.",
	})

	taskTimeoutCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "worker_task_timeout_count",
		Help:      "The total number of tasks abandoned because they exceeded their deadline.",
	})

	taskFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "worker_task_failure_count",
		Help:      "The total number of tasks that completed with an error.",
	})
)

// DefaultPoolSize clamps to the available execution parallelism.
func DefaultPoolSize() int {
	if n := runtime.GOMAXPROCS(0); n < 4 {
		return n
	}
	return 4
}

type taskOutcome struct {
	res *Result
	err error
}

// task is the unit of work passed from Execute to a pool worker. The
// caller and the worker share nothing but these channels and the input
// batch; the done channel is buffered so a worker finishing after its
// caller gave up parks the result instead of blocking.
type task struct {
	id       string
	kind     Kind
	records  []record.Record
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc
	progress chan Progress
	done     chan taskOutcome
}

// Pool runs tasks on a fixed set of background goroutines fed by a FIFO
// queue. An idle worker picks a task up immediately; otherwise the task
// waits its turn in the queue.
type Pool struct {
	logger     logger.Logger
	size       int
	queueDepth int
	timeout    time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *task
	wg     sync.WaitGroup
}

var _ Executor = (*Pool)(nil)

// PoolOpt configures a Pool.
type PoolOpt func(*Pool)

// WithSize sets the worker count, clamped to [1, GOMAXPROCS] and the
// pool's hard cap.
func WithSize(n int) PoolOpt {
	return func(p *Pool) {
		p.size = n
	}
}

// WithQueueDepth sets the task queue capacity.
func WithQueueDepth(n int) PoolOpt {
	return func(p *Pool) {
		if n > 0 {
			p.queueDepth = n
		}
	}
}

// WithTaskTimeout sets the per-task deadline.
func WithTaskTimeout(d time.Duration) PoolOpt {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPool starts the worker goroutines and returns the ready pool.
func NewPool(l logger.Logger, opts ...PoolOpt) *Pool {
	p := &Pool{
		logger:     l,
		size:       DefaultPoolSize(),
		queueDepth: DefaultQueueDepth,
		timeout:    DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.size < 1 {
		p.size = 1
	}
	if n := runtime.GOMAXPROCS(0); p.size > n {
		p.size = n
	}
	if p.size > maxPoolSize {
		p.size = maxPoolSize
	}

	p.queue = make(chan *task, p.queueDepth)
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.work()
	}
	return p
}

// Name implements Executor.
func (p *Pool) Name() string { return "pool" }

// Size reports the worker count the pool settled on.
func (p *Pool) Size() int { return p.size }

// Available implements Executor.
func (p *Pool) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// Execute implements Executor. It enqueues the task, relays its progress
// notifications to onProgress from the calling goroutine, and blocks
// until the task completes, the context is done, or the task deadline
// expires. An expired task is abandoned: its bookkeeping slot is freed
// and whatever result the worker eventually produces is dropped.
func (p *Pool) Execute(ctx context.Context, kind Kind, records []record.Record, opts Options, onProgress ProgressFunc) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := &task{
		id:       ulid.Make().String(),
		kind:     kind,
		records:  records,
		opts:     opts,
		progress: make(chan Progress, 16),
		done:     make(chan taskOutcome, 1),
	}
	t.ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		t.cancel()
		return nil, ErrPoolClosed
	}
	select {
	case p.queue <- t:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		t.cancel()
		return nil, ctx.Err()
	}

	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	for {
		select {
		case pr := <-t.progress:
			onProgress(pr)
		case out := <-t.done:
			drainProgress(t.progress, onProgress)
			if out.err != nil {
				taskFailureCounter.Inc()
				return nil, fmt.Errorf("task %s: %w", t.id, out.err)
			}
			return out.res, nil
		case <-timer.C:
			t.cancel()
			taskTimeoutCounter.Inc()
			p.logger.Warn("abandoning timed out task",
				zap.String("task_id", t.id),
				zap.String("kind", string(kind)),
				zap.Duration("timeout", p.timeout),
			)
			return nil, fmt.Errorf("task %s: %w", t.id, ErrTaskTimeout)
		case <-ctx.Done():
			t.cancel()
			return nil, ctx.Err()
		}
	}
}

// Close stops accepting tasks, lets the workers finish everything
// already queued, and waits for them to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// work is one worker goroutine: take the next task in FIFO order, run
// it, park the outcome, repeat until the queue is closed.
func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.queue {
		taskDispatchedCounter.Inc()
		res, err := run(t.ctx, t.id, t.kind, t.records, t.opts, func(pr Progress) {
			// The caller drains this channel until the task finishes;
			// once the task is abandoned its context is cancelled and
			// the send becomes a no-op.
			concurrency.TrySendThroughChannel(t.ctx, pr, t.progress)
		})
		t.done <- taskOutcome{res: res, err: err}
		t.cancel()
	}
}

// drainProgress flushes notifications the worker buffered before it
// finished, preserving progress-before-result delivery order.
func drainProgress(ch <-chan Progress, onProgress ProgressFunc) {
	for {
		select {
		case pr := <-ch:
			onProgress(pr)
		default:
			return
		}
	}
}
