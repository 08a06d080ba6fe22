// Package parallel provides the worker pool that runs shader generation.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Task is a unit of work. worker is the id of the goroutine running it, in
// [0, Workers()), and stays fixed for that goroutine's lifetime so tasks
// can index per-worker scratch state without locking.
type Task func(worker int)

// WorkerPool is a pool of goroutines with stable ids.
//
// The pool distributes tasks across workers, each with their own queue.
// Workers steal from other queues when their own is empty, which balances
// load when some permutations are much slower to generate than others.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// workQueues holds per-worker queues.
	workQueues []chan Task

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool

	// queueSize is the buffer size for each worker's queue.
	queueSize int
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan Task, workers),
		done:       make(chan struct{}),
		queueSize:  queueSize,
	}
	for i := range workers {
		p.workQueues[i] = make(chan Task, queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(id, myQueue)
			return

		case task := <-myQueue:
			if task != nil {
				task(id)
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen(id)
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(id, myQueue)
				return
			case task := <-myQueue:
				if task != nil {
					task(id)
				}
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(id int, queue chan Task) {
	for {
		select {
		case task := <-queue:
			if task != nil {
				task(id)
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *WorkerPool) steal(myID int) Task {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case task := <-p.workQueues[i]:
			return task
		default:
		}
	}
	return nil
}

// ExecuteAll distributes tasks across workers and waits for all of them.
// It reports how many tasks ran; tasks not run because the pool closed are
// not counted.
func (p *WorkerPool) ExecuteAll(tasks []Task) int {
	if len(tasks) == 0 || !p.running.Load() {
		return 0
	}

	var (
		completion sync.WaitGroup
		ran        atomic.Int64
	)
	completion.Add(len(tasks))

	for i, fn := range tasks {
		wrapped := func(worker int) {
			defer completion.Done()
			fn(worker)
			ran.Add(1)
		}

		select {
		case p.workQueues[i%p.workers] <- wrapped:
		case <-p.done:
			completion.Done()
		}
	}

	completion.Wait()
	return int(ran.Load())
}

// Submit sends a single task to the worker with the shortest queue.
// If the pool is closed, this is a no-op.
func (p *WorkerPool) Submit(fn Task) {
	if fn == nil || !p.running.Load() {
		return
	}

	minLen := len(p.workQueues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.workQueues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	select {
	case p.workQueues[minIdx] <- fn:
	case <-p.done:
	}
}

// Close stops accepting new work, waits for queued work to complete and
// stops all workers. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the total number of tasks currently queued.
// This is an approximation as queues can change while iterating.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}
