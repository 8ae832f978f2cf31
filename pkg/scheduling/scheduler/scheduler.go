package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/scheduling/workerpool"
)

// Entry describes a registered task.
type Entry struct {
	ID      string
	Next    time.Time
	Spec    string
	Created time.Time
	Runs    int64
	Skipped int64
}

// Scheduler runs repeating tasks on a worker pool.
type Scheduler interface {
	// ScheduleEvery runs task every interval, first one interval from now.
	ScheduleEvery(id string, task workerpool.Task, interval time.Duration) error

	// ScheduleCron runs task on a cron expression. Five and six field
	// expressions are accepted, as are descriptors such as "@every 2s".
	ScheduleCron(id string, cronExpr string, task workerpool.Task) error

	// List returns the registered tasks ordered by next run time.
	List() []Entry

	// Start begins dispatching due tasks. It fails if already started or stopped.
	Start() error

	// Stop halts dispatching. The returned channel closes once the dispatch
	// loop has exited and, if the scheduler created its own pool, that pool
	// has drained. Stop is safe to call more than once.
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	WorkerPool   workerpool.Pool
	Location     *time.Location // For cron scheduling
	TickInterval time.Duration  // How often to check for ready tasks (default: 10ms)
	MaxTasks     int            // Maximum number of scheduled tasks (default: 100)

	// OnSkip is called when a due run could not be handed to the pool,
	// typically because every worker is still busy with earlier runs.
	OnSkip func(id string, err error)
}

// cronParser accepts five or six field expressions and descriptors.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateCron reports whether expr is accepted by ScheduleCron.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}

func parseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// interval is a cron.Schedule with sub-second precision; cron.Every rounds
// to whole seconds.
type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

type scheduledTask struct {
	id       string
	spec     string
	task     workerpool.Task
	schedule cron.Schedule
	next     time.Time
	created  time.Time
	runs     int64
	skipped  int64
}

type scheduler struct {
	pool         workerpool.Pool
	ownPool      bool
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	onSkip       func(string, error)

	mu       sync.Mutex
	tasks    map[string]*scheduledTask
	running  bool
	stopped  bool
	stopCh   chan struct{}
	loopDone chan struct{}
	done     chan struct{}
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	pool := cfg.WorkerPool
	ownPool := false
	if pool == nil {
		pool = workerpool.NewWithConfig(workerpool.Config{Name: "scheduler", WorkerCount: 2})
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 10 * time.Millisecond
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 100
	}

	return &scheduler{
		pool:         pool,
		ownPool:      ownPool,
		location:     location,
		tickInterval: tickInterval,
		maxTasks:     maxTasks,
		onSkip:       cfg.OnSkip,
		tasks:        make(map[string]*scheduledTask),
		stopCh:       make(chan struct{}),
		loopDone:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (s *scheduler) ScheduleEvery(id string, task workerpool.Task, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("interval must be positive, got %v", every)
	}
	return s.add(id, every.String(), task, interval(every))
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task workerpool.Task) error {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}
	return s.add(id, cronExpr, task, schedule)
}

func (s *scheduler) add(id, spec string, task workerpool.Task, schedule cron.Schedule) error {
	if id == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("task with ID %q already exists, cancel the existing task first", id)
	}
	if len(s.tasks) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached", s.maxTasks)
	}

	now := time.Now().In(s.location)
	s.tasks[id] = &scheduledTask{
		id:       id,
		spec:     spec,
		task:     task,
		schedule: schedule,
		next:     schedule.Next(now),
		created:  now,
	}
	return nil
}

func (s *scheduler) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.tasks))
	for _, t := range s.tasks {
		entries = append(entries, Entry{
			ID:      t.id,
			Next:    t.next,
			Spec:    t.spec,
			Created: t.created,
			Runs:    t.runs,
			Skipped: t.skipped,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Next.Before(entries[j].Next)
	})
	return entries
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler has been stopped: %w", bwerrors.ErrClosed)
	}
	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	go s.run()
	return nil
}

func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return s.done
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		if wasRunning {
			<-s.loopDone
		}
		if s.ownPool {
			<-s.pool.Shutdown()
		}
	}()

	return s.done
}

func (s *scheduler) run() {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	defer close(s.loopDone)

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.dispatch(now)
		}
	}
}

// dispatch hands every due task to the pool and advances its schedule.
func (s *scheduler) dispatch(now time.Time) {
	now = now.In(s.location)

	s.mu.Lock()
	var due []*scheduledTask
	for id, t := range s.tasks {
		if t.next.IsZero() {
			// cron expressions that can never fire again
			delete(s.tasks, id)
			continue
		}
		if !now.Before(t.next) {
			due = append(due, t)
			// missed runs are not replayed
			for !t.next.IsZero() && !t.next.After(now) {
				t.next = t.schedule.Next(t.next)
			}
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		err := s.pool.TrySubmit(t.task)

		s.mu.Lock()
		if err != nil {
			t.skipped++
		} else {
			t.runs++
		}
		s.mu.Unlock()

		if err != nil && s.onSkip != nil && !errors.Is(err, bwerrors.ErrClosed) {
			s.onSkip(t.id, err)
		}
	}
}
