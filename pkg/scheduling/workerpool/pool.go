package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/vnykmshr/bucketwatch/pkg/metrics"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Pool represents a worker pool that can execute tasks concurrently.
type Pool interface {
	// TrySubmit queues the task only if that can happen without blocking.
	// It returns errors.ErrCapacityExceeded when every worker is busy and the queue is full.
	TrySubmit(task Task) error

	// Shutdown stops accepting tasks, lets queued tasks finish and returns a
	// channel closed once every worker has exited. Calling it again returns
	// the same channel.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalCompleted returns the total number of tasks finished by the pool.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// Name labels the pool in metrics and logs.
	Name string

	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the maximum number of tasks that can wait for a worker.
	// Zero means tasks are handed directly to an idle worker.
	QueueSize int

	// TaskTimeout bounds each task execution. Zero means no timeout.
	TaskTimeout time.Duration

	// PanicHandler is called when a task panics.
	// Either way the panic is recovered and counted as a failed task.
	PanicHandler func(task Task, recovered interface{})

	// Metrics receives task and pool measurements. Nil disables them.
	Metrics *metrics.Registry
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config

	taskQueue    chan Task
	shutdownCh   chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once

	mu             sync.RWMutex
	isShutdown     bool
	activeWorkers  int
	totalCompleted int64

	workerWg sync.WaitGroup
}

// worker represents a single worker in the pool.
type worker struct {
	id   int
	pool *workerPool
}

// NewWithConfig creates a new worker pool with the specified configuration.
// It panics if WorkerCount is not positive or QueueSize is negative.
func NewWithConfig(config Config) Pool {
	if config.WorkerCount <= 0 {
		panic("worker count must be positive")
	}

	if config.QueueSize < 0 {
		panic("queue size must be >= 0")
	}

	if config.Name == "" {
		config.Name = "default"
	}

	pool := &workerPool{
		config:     config,
		taskQueue:  make(chan Task, config.QueueSize),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		go w.run()
	}

	config.Metrics.ObservePool(config.Name, config.WorkerCount, 0)

	return pool
}
