package hlms

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/hlms/internal/parallel"
)

// CompileRequest is a stub entry waiting for a compile worker.
type CompileRequest struct {
	Pass   *Cache
	Stub   *Cache
	Queued QueuedRenderable
	Caster bool

	hlms *Hlms
}

// FinalHash returns the PSO cache hash the request fills.
func (r *CompileRequest) FinalHash() uint32 { return r.Stub.Hash }

// QueueStats counts the work a CompileQueue has done.
type QueueStats struct {
	Requests uint64 // requests pushed, warm-ups included
	Compiled uint64 // stubs filled
	Deferred uint64 // stubs left for a later Fire
	Skipped  uint64 // duplicate requests for an already claimed stub
	Failed   uint64 // generation errors
}

// CompileQueue collects the stub entries GetMaterial creates during a
// frame and compiles them on a worker pool when Fire is called. One queue
// may serve several engines.
//
// Push methods are safe for concurrent use. Fire and FireWarmUp must not
// run concurrently with each other.
type CompileQueue struct {
	pool *parallel.WorkerPool

	mu       sync.Mutex
	requests []CompileRequest
	warmUps  []CompileRequest

	requested atomic.Uint64
	compiled  atomic.Uint64
	deferred  atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
}

// NewCompileQueue starts a queue with the given number of workers. Zero
// or negative uses GOMAXPROCS.
func NewCompileQueue(workers int) *CompileQueue {
	return &CompileQueue{pool: parallel.NewWorkerPool(workers)}
}

// Workers returns the number of compile workers.
func (q *CompileQueue) Workers() int { return q.pool.Workers() }

// PushRequest queues r for the next Fire.
func (q *CompileQueue) PushRequest(h *Hlms, r CompileRequest) {
	r.hlms = h
	q.requested.Add(1)
	q.mu.Lock()
	q.requests = append(q.requests, r)
	q.mu.Unlock()
}

// PushWarmUpRequest queues r for the next FireWarmUp.
func (q *CompileQueue) PushWarmUpRequest(h *Hlms, r CompileRequest) {
	r.hlms = h
	q.requested.Add(1)
	q.mu.Lock()
	q.warmUps = append(q.warmUps, r)
	q.mu.Unlock()
}

// Pending returns the number of queued requests.
func (q *CompileQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests) + len(q.warmUps)
}

// Stats returns a snapshot of the queue counters.
func (q *CompileQueue) Stats() QueueStats {
	return QueueStats{
		Requests: q.requested.Load(),
		Compiled: q.compiled.Load(),
		Deferred: q.deferred.Load(),
		Skipped:  q.skipped.Load(),
		Failed:   q.failed.Load(),
	}
}

// Fire compiles every queued request and waits for them. deadline is
// handed to the render system; a zero deadline means no budget. Stubs the
// render system could not finish in time stay CompilationRequired, and the
// next GetMaterial queues them again. Running out of time is not an error.
//
// Requests not started when ctx is done are dropped the same way.
// The returned error joins every generation failure.
func (q *CompileQueue) Fire(ctx context.Context, deadline time.Time) error {
	q.mu.Lock()
	reqs := q.requests
	q.requests = nil
	q.mu.Unlock()
	return q.run(ctx, reqs, deadline)
}

// FireWarmUp compiles the queued warm-up requests with no deadline.
func (q *CompileQueue) FireWarmUp(ctx context.Context) error {
	q.mu.Lock()
	reqs := q.warmUps
	q.warmUps = nil
	q.mu.Unlock()
	return q.run(ctx, reqs, time.Time{})
}

func (q *CompileQueue) run(ctx context.Context, reqs []CompileRequest, deadline time.Time) error {
	if len(reqs) == 0 {
		return nil
	}
	var (
		errMu sync.Mutex
		errs  []error
	)
	tasks := make([]parallel.Task, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		tasks[i] = func(worker int) {
			if ctx.Err() != nil {
				q.deferred.Add(1)
				return
			}
			if !req.Stub.claim() {
				q.skipped.Add(1)
				return
			}
			h := req.hlms
			_, err := h.CompileStubEntry(req.Stub, req.Pass, req.Queued, deadline, h.workerSlot(worker+1))
			switch {
			case err != nil:
				q.failed.Add(1)
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			case req.Stub.Flags() == CacheFlagsCompilationRequired:
				q.deferred.Add(1)
			default:
				q.compiled.Add(1)
			}
		}
	}
	q.pool.ExecuteAll(tasks)
	return errors.Join(errs...)
}

// Close stops the workers. Queued requests are discarded.
func (q *CompileQueue) Close() {
	q.mu.Lock()
	q.requests, q.warmUps = nil, nil
	q.mu.Unlock()
	q.pool.Close()
}
