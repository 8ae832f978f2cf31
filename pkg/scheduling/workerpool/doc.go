/*
Package workerpool runs tasks on a fixed set of worker goroutines.

The monitor uses a small pool to execute poll ticks so that a slow metrics
request never stalls the scheduler loop, while the number of requests that
can be outstanding at once stays bounded by the worker count.

Basic usage:

	pool := workerpool.NewWithConfig(workerpool.Config{
		Name:        "poller",
		WorkerCount: 2,
		TaskTimeout: 2 * time.Second,
	})
	defer func() { <-pool.Shutdown() }()

	err := pool.TrySubmit(workerpool.TaskFunc(func(ctx context.Context) error {
		return poller.Tick(ctx)
	}))

TrySubmit never blocks. It reports errors.ErrCapacityExceeded when every
worker is busy and the queue is full, which is what the scheduler relies on
for periodic work: a tick that finds every worker busy is dropped rather
than piled up behind the slow ones.

Panics inside a task are recovered, passed to the PanicHandler if one is
configured and counted as failed tasks. Shutdown stops intake, lets queued tasks run
and closes the returned channel once every worker has exited.
*/
package workerpool
