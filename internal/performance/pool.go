// Package performance provides the worker pool used for concurrent symbol
// evaluation.
package performance

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs tasks on a fixed set of reused goroutines. Symbol
// evaluations fan out through it so a long symbol list cannot spawn an
// unbounded number of concurrent brokerage calls.
type WorkerPool struct {
	workers    int
	taskQueue  chan func()
	wg         sync.WaitGroup
	taskWG     sync.WaitGroup
	running    atomic.Bool
	tasksTotal atomic.Uint64
	tasksDone  atomic.Uint64
}

// NewWorkerPool creates a worker pool. workers <= 0 defaults to
// runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*4),
	}
}

// Start starts the workers. Starting a running pool is a no-op.
func (p *WorkerPool) Start() {
	if p.running.Swap(true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.taskQueue {
		task()
		p.tasksDone.Add(1)
		p.taskWG.Done()
	}
}

// Submit queues a task. It blocks when the queue is full and returns false
// only on a stopped pool.
func (p *WorkerPool) Submit(task func()) bool {
	if !p.running.Load() {
		return false
	}
	p.taskWG.Add(1)
	p.tasksTotal.Add(1)
	p.taskQueue <- task
	return true
}

// Wait blocks until every submitted task has completed.
func (p *WorkerPool) Wait() {
	p.taskWG.Wait()
}

// Stop drains outstanding tasks and stops the workers.
func (p *WorkerPool) Stop() {
	if !p.running.Swap(false) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
}

// PoolStats holds pool counters.
type PoolStats struct {
	Workers    int
	TasksTotal uint64
	TasksDone  uint64
}

// Stats returns pool counters.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		TasksTotal: p.tasksTotal.Load(),
		TasksDone:  p.tasksDone.Load(),
	}
}
