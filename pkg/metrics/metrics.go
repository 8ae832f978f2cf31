// Package metrics provides Prometheus instrumentation for bucketwatch components.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for bucketwatch components.
//
// Every helper method is safe to call on a nil *Registry, which records nothing.
type Registry struct {
	// Synchronization metrics
	Polls        *prometheus.CounterVec
	PollDuration prometheus.Histogram
	Probes       *prometheus.CounterVec
	Actions      *prometheus.CounterVec
	InFlight     *prometheus.GaugeVec

	// Last-known remote state
	BucketLevel    prometheus.Gauge
	BucketCapacity prometheus.Gauge
	HistoryPoints  prometheus.Gauge

	// Worker pool metrics
	TasksCompleted   *prometheus.CounterVec
	TasksFailed      *prometheus.CounterVec
	TaskDuration     *prometheus.HistogramVec
	WorkerPoolSize   *prometheus.GaugeVec
	WorkerPoolQueued *prometheus.GaugeVec
}

// DefaultRegistry is registered with the Prometheus default registerer and
// served by the binary's metrics listener. Components given a nil
// registry record nothing.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a metrics registry registered with reg under the default namespace.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates a metrics registry from cfg.
// A disabled config yields nil, which every helper accepts.
func NewRegistryWithConfig(cfg Config) *Registry {
	if !cfg.Enabled {
		return nil
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(cfg.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(cfg.Labels, reg)
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	factory := promauto.With(reg)

	return &Registry{
		Polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "poller",
				Name:      "polls_total",
				Help:      "Total number of metrics polls by result",
			},
			[]string{"result"},
		),

		PollDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "poller",
				Name:      "poll_duration_seconds",
				Help:      "Time spent fetching one metrics snapshot",
				Buckets:   prometheus.DefBuckets,
			},
		),

		Probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "dispatcher",
				Name:      "probes_total",
				Help:      "Total number of admission probes by outcome",
			},
			[]string{"outcome"},
		),

		Actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "actions",
				Name:      "total",
				Help:      "Total number of operator actions by kind and result",
			},
			[]string{"action", "result"},
		),

		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "actions",
				Name:      "in_flight",
				Help:      "Whether an action of the given kind is in flight",
			},
			[]string{"action"},
		),

		BucketLevel: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "bucket",
				Name:      "level",
				Help:      "Last polled bucket occupancy",
			},
		),

		BucketCapacity: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "bucket",
				Name:      "capacity",
				Help:      "Last polled bucket capacity",
			},
		),

		HistoryPoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "history",
				Name:      "points",
				Help:      "Number of points held for the level chart",
			},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks completed successfully",
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that failed",
			},
			[]string{"pool_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Current worker pool size",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "queued_tasks",
				Help:      "Number of queued tasks",
			},
			[]string{"pool_name"},
		),
	}
}

// ObservePoll records one poll attempt.
func (r *Registry) ObservePoll(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.PollDuration.Observe(d.Seconds())
	r.Polls.WithLabelValues(result(err)).Inc()
}

// ObserveBucket records the occupancy and history length after a state change.
func (r *Registry) ObserveBucket(level, capacity, historyPoints int) {
	if r == nil {
		return
	}
	r.BucketLevel.Set(float64(level))
	r.BucketCapacity.Set(float64(capacity))
	r.HistoryPoints.Set(float64(historyPoints))
}

// ObserveProbe records one admission probe outcome.
func (r *Registry) ObserveProbe(outcome string) {
	if r == nil {
		return
	}
	r.Probes.WithLabelValues(outcome).Inc()
}

// ObserveAction records the end of an operator action.
func (r *Registry) ObserveAction(action string, err error) {
	if r == nil {
		return
	}
	r.Actions.WithLabelValues(action, result(err)).Inc()
}

// SetInFlight flags whether action is running.
func (r *Registry) SetInFlight(action string, inFlight bool) {
	if r == nil {
		return
	}
	v := 0.0
	if inFlight {
		v = 1
	}
	r.InFlight.WithLabelValues(action).Set(v)
}

// ObserveTask records one worker pool task.
func (r *Registry) ObserveTask(pool string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.TaskDuration.WithLabelValues(pool).Observe(d.Seconds())
	if err != nil {
		r.TasksFailed.WithLabelValues(pool).Inc()
	} else {
		r.TasksCompleted.WithLabelValues(pool).Inc()
	}
}

// ObservePool records worker pool sizing.
func (r *Registry) ObservePool(pool string, size, queued int) {
	if r == nil {
		return
	}
	r.WorkerPoolSize.WithLabelValues(pool).Set(float64(size))
	r.WorkerPoolQueued.WithLabelValues(pool).Set(float64(queued))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
