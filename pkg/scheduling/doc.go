/*
Package scheduling groups the execution primitives behind the poller.

  - workerpool: a fixed set of goroutines that run submitted tasks
  - scheduler: repeating interval and cron schedules dispatched onto a pool

The poller registers one repeating task and lets the pool bound how many
metric fetches can be outstanding at once:

	pool := workerpool.NewWithConfig(workerpool.Config{Name: "poller", WorkerCount: 2})
	s := scheduler.NewWithConfig(scheduler.Config{WorkerPool: pool})
	_ = s.ScheduleEvery("poll-metrics", task, time.Second)
	_ = s.Start()
*/
package scheduling
