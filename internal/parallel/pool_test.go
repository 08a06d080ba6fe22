package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if pool.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS", n, pool.Workers())
		}
		pool.Close()
	}
}

// =============================================================================
// ExecuteAll Tests
// =============================================================================

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	tasks := make([]Task, 100)
	for i := range tasks {
		tasks[i] = func(int) { counter.Add(1) }
	}

	if ran := pool.ExecuteAll(tasks); ran != len(tasks) {
		t.Errorf("ExecuteAll ran %d tasks, want %d", ran, len(tasks))
	}
	if counter.Load() != int64(len(tasks)) {
		t.Errorf("counter = %d, want %d", counter.Load(), len(tasks))
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	if ran := pool.ExecuteAll(nil); ran != 0 {
		t.Errorf("ExecuteAll(nil) = %d", ran)
	}
}

func TestWorkerPool_WorkerIDsInRange(t *testing.T) {
	const workers = 3
	pool := NewWorkerPool(workers)
	defer pool.Close()

	var bad atomic.Int64
	tasks := make([]Task, 64)
	for i := range tasks {
		tasks[i] = func(id int) {
			if id < 0 || id >= workers {
				bad.Add(1)
			}
		}
	}
	pool.ExecuteAll(tasks)
	if bad.Load() != 0 {
		t.Errorf("%d tasks saw an out-of-range worker id", bad.Load())
	}
}

func TestWorkerPool_WorkerIDsExclusive(t *testing.T) {
	// Two tasks must never run at the same time with the same id.
	const workers = 4
	pool := NewWorkerPool(workers)
	defer pool.Close()

	var busy [workers]atomic.Bool
	var overlap atomic.Int64
	tasks := make([]Task, 200)
	for i := range tasks {
		tasks[i] = func(id int) {
			if !busy[id].CompareAndSwap(false, true) {
				overlap.Add(1)
				return
			}
			time.Sleep(10 * time.Microsecond)
			busy[id].Store(false)
		}
	}
	pool.ExecuteAll(tasks)
	if overlap.Load() != 0 {
		t.Errorf("%d tasks shared a worker id concurrently", overlap.Load())
	}
}

// =============================================================================
// Submit Tests
// =============================================================================

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var wg sync.WaitGroup
	var counter atomic.Int64
	for range 10 {
		wg.Add(1)
		pool.Submit(func(int) {
			defer wg.Done()
			counter.Add(1)
		})
	}
	wg.Wait()
	if counter.Load() != 10 {
		t.Errorf("counter = %d, want 10", counter.Load())
	}
}

func TestWorkerPool_Submit_Nil(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()
	pool.Submit(nil)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()
	if pool.IsRunning() {
		t.Error("pool still running after Close")
	}
}

func TestWorkerPool_OperationsAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var counter atomic.Int64
	if ran := pool.ExecuteAll([]Task{func(int) { counter.Add(1) }}); ran != 0 {
		t.Errorf("ExecuteAll after Close ran %d tasks", ran)
	}
	pool.Submit(func(int) { counter.Add(1) })
	if counter.Load() != 0 {
		t.Error("work ran after Close")
	}
}

func TestWorkerPool_SingleWorker(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	order := make([]int, 0, 5)
	var mu sync.Mutex
	tasks := make([]Task, 5)
	for i := range tasks {
		tasks[i] = func(int) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}
	}
	pool.ExecuteAll(tasks)
	if len(order) != 5 {
		t.Fatalf("ran %d tasks, want 5", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("single worker ran out of order: %v", order)
			break
		}
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorkerPool_ExecuteAll(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	tasks := make([]Task, 100)
	for i := range tasks {
		tasks[i] = func(int) {}
	}
	for b.Loop() {
		pool.ExecuteAll(tasks)
	}
}
