// Package metrics provides Prometheus instrumentation for bucketwatch.
//
// The client records how its synchronization with the remote bucket is going:
// poll results and latency, probe outcomes, operator actions, and the last
// polled occupancy.
//
// # Quick Start
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
//	client := monitor.New(service, monitor.Config{Metrics: m})
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// A nil *Registry is valid and records nothing, so components can be built
// without instrumentation.
//
// # Available Metrics
//
//   - bucketwatch_poller_polls_total{result}
//   - bucketwatch_poller_poll_duration_seconds
//   - bucketwatch_dispatcher_probes_total{outcome}
//   - bucketwatch_actions_total{action,result}
//   - bucketwatch_actions_in_flight{action}
//   - bucketwatch_bucket_level, bucketwatch_bucket_capacity
//   - bucketwatch_history_points
//   - bucketwatch_workerpool_* (size, queued_tasks, tasks_completed_total,
//     tasks_failed_total, task_duration_seconds)
package metrics
