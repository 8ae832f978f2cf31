package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
)

// TrySubmit queues the task only if a worker or queue slot is free right now.
func (p *workerPool) TrySubmit(task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	p.mu.RLock()
	isShutdown := p.isShutdown
	p.mu.RUnlock()

	if isShutdown {
		return fmt.Errorf("cannot submit task: worker pool has been shut down: %w", bwerrors.ErrClosed)
	}

	select {
	case p.taskQueue <- task:
		p.config.Metrics.ObservePool(p.config.Name, p.config.WorkerCount, len(p.taskQueue))
		return nil
	default:
		return fmt.Errorf("cannot submit task: all %d workers busy: %w", p.config.WorkerCount, bwerrors.ErrCapacityExceeded)
	}
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.isShutdown = true
		p.mu.Unlock()

		close(p.shutdownCh)

		go func() {
			p.workerWg.Wait()
			close(p.done)
		}()
	})

	return p.done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activeWorkers
}

// TotalCompleted returns the total number of tasks finished by the pool.
func (p *workerPool) TotalCompleted() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalCompleted
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	for {
		select {
		case task := <-w.pool.taskQueue:
			w.executeTask(task)
		case <-w.pool.shutdownCh:
			// finish whatever is still queued
			for {
				select {
				case task := <-w.pool.taskQueue:
					w.executeTask(task)
				default:
					return
				}
			}
		}
	}
}

// executeTask runs one task, applying the pool's timeout and recovering panics.
func (w *worker) executeTask(task Task) {
	p := w.pool
	start := time.Now()
	var err error

	p.mu.Lock()
	p.activeWorkers++
	p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(task, r)
			}
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}

		p.mu.Lock()
		p.activeWorkers--
		p.totalCompleted++
		p.mu.Unlock()

		p.config.Metrics.ObserveTask(p.config.Name, time.Since(start), err)
	}()

	ctx := context.Background()
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	err = task.Execute(ctx)
}
