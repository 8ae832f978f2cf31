/*
Package scheduler dispatches repeating tasks onto a worker pool.

Every task carries a robfig/cron Schedule. Fixed periods use a sub-second
interval schedule, and cron expressions (five or six fields, or descriptors
such as "@every 2s") are parsed with cron.NewParser:

	s := scheduler.NewWithConfig(scheduler.Config{WorkerPool: pool})
	_ = s.ScheduleEvery("poll", pollTask, time.Second)
	_ = s.Start()
	defer func() { <-s.Stop() }()

A dispatch loop wakes every TickInterval and hands due tasks to the pool
with TrySubmit, so the loop itself never blocks on slow work. When every
worker is busy the run is skipped and reported through Config.OnSkip.
Runs missed while the process was descheduled are not replayed.
*/
package scheduler
