package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
	"github.com/vnykmshr/bucketwatch/pkg/model"
	"github.com/vnykmshr/bucketwatch/pkg/scheduling/scheduler"
	"github.com/vnykmshr/bucketwatch/pkg/scheduling/workerpool"
)

const (
	// DefaultPollInterval is the period between metric fetches.
	DefaultPollInterval = time.Second

	// DefaultPollWorkers bounds how many fetches may be outstanding at once.
	DefaultPollWorkers = 2

	pollTaskID = "poll-metrics"
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	Service bucketapi.Service
	Store   *Store

	// Interval is used when Schedule is empty.
	Interval time.Duration
	// Schedule is a cron expression, for example "@every 2s" or "*/5 * * * * *".
	Schedule string
	Workers  int
	// Timeout bounds each fetch. Defaults to Interval times Workers, so a
	// hung fetch releases its worker before every worker is tied up.
	Timeout time.Duration

	// Location is used for history labels. Defaults to time.Local.
	Location *time.Location
	Logger   *zap.Logger
	Metrics  *metrics.Registry
}

// Poller fetches the service metrics on a schedule and folds every
// successful result into the store.
type Poller struct {
	service  bucketapi.Service
	store    *Store
	interval time.Duration
	schedule string
	workers  int
	timeout  time.Duration
	location *time.Location
	logger   *zap.Logger
	metrics  *metrics.Registry

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	scheduler scheduler.Scheduler
	pool      workerpool.Pool
	done      chan struct{}
}

// NewPoller creates a poller. It does not start polling.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPollWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval * time.Duration(cfg.Workers)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Poller{
		service:  cfg.Service,
		store:    cfg.Store,
		interval: cfg.Interval,
		schedule: cfg.Schedule,
		workers:  cfg.Workers,
		timeout:  cfg.Timeout,
		location: cfg.Location,
		logger:   cfg.Logger.Named("poller"),
		metrics:  cfg.Metrics,
		done:     make(chan struct{}),
	}
}

// PollStatus describes the polling schedule and the fetches in progress.
type PollStatus struct {
	Running   bool
	Spec      string
	Next      time.Time
	Runs      int64
	Skipped   int64
	Completed int64
	Busy      int
	Workers   int
}

// Tick performs one fetch-and-apply cycle. A fetch abandoned because ctx
// was cancelled is returned but neither logged nor counted.
func (p *Poller) Tick(ctx context.Context) error {
	start := time.Now()
	snap, err := p.service.Metrics(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return fmt.Errorf("poll metrics: %w", err)
	}
	p.metrics.ObservePoll(time.Since(start), err)
	if err != nil {
		p.logger.Warn("fetch metrics failed", zap.Error(err))
		return fmt.Errorf("poll metrics: %w", err)
	}

	point := model.NewHistoryPoint(snap, p.location)
	next := p.store.Update(func(s State) State {
		s.Metrics = snap
		s.History = s.History.Append(point)
		return s
	})
	p.metrics.ObserveBucket(snap.CurrentLevel, snap.Capacity, next.History.Len())

	if !snap.Consistent() {
		p.logger.Debug("inconsistent counters",
			zap.Uint64("total", snap.Total),
			zap.Uint64("allowed", snap.Allowed),
			zap.Uint64("rejected", snap.Rejected))
	}
	return nil
}

// Start begins periodic polling. The first fetch happens one period after Start.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return fmt.Errorf("poller: %w", bwerrors.ErrClosed)
	}
	if p.started {
		return fmt.Errorf("poller already started")
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := workerpool.NewWithConfig(workerpool.Config{
		Name:        "poller",
		WorkerCount: p.workers,
		TaskTimeout: p.timeout,
		PanicHandler: func(_ workerpool.Task, r interface{}) {
			p.logger.Error("poll panicked", zap.Any("panic", r), zap.Stack("stack"))
		},
		Metrics: p.metrics,
	})
	sched := scheduler.NewWithConfig(scheduler.Config{
		WorkerPool: pool,
		Location:   p.location,
		OnSkip: func(id string, err error) {
			p.logger.Warn("poll skipped", zap.String("task", id), zap.Error(err))
		},
	})

	// Tick logs and counts its own failures.
	task := workerpool.TaskFunc(func(taskCtx context.Context) error {
		tickCtx, cancel := context.WithCancel(taskCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return p.Tick(tickCtx)
	})

	var err error
	if p.schedule != "" {
		err = sched.ScheduleCron(pollTaskID, p.schedule, task)
	} else {
		err = sched.ScheduleEvery(pollTaskID, task, p.interval)
	}
	if err == nil {
		err = sched.Start()
	}
	if err != nil {
		cancel()
		<-sched.Stop()
		<-pool.Shutdown()
		return fmt.Errorf("start poller: %w", err)
	}

	p.started = true
	p.cancel = cancel
	p.scheduler = sched
	p.pool = pool

	p.logger.Info("polling started",
		zap.Duration("interval", p.interval),
		zap.String("schedule", p.schedule))
	return nil
}

// Status reports the schedule and worker usage. It is the zero value
// before Start.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	sched, pool, stopped := p.scheduler, p.pool, p.stopped
	p.mu.Unlock()

	if sched == nil {
		return PollStatus{}
	}
	st := PollStatus{
		Running:   !stopped,
		Completed: pool.TotalCompleted(),
		Busy:      pool.ActiveWorkers(),
		Workers:   pool.Size(),
	}
	for _, e := range sched.List() {
		if e.ID == pollTaskID {
			st.Spec, st.Next, st.Runs, st.Skipped = e.Spec, e.Next, e.Runs, e.Skipped
		}
	}
	return st
}

// Stop cancels polling, including fetches in flight, and closes the
// returned channel once nothing is left running. It is idempotent.
func (p *Poller) Stop() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return p.done
	}
	p.stopped = true

	if !p.started {
		close(p.done)
		return p.done
	}

	p.cancel()
	sched, pool := p.scheduler, p.pool
	go func() {
		defer close(p.done)
		<-sched.Stop()
		<-pool.Shutdown()
		p.logger.Info("polling stopped")
	}()
	return p.done
}
