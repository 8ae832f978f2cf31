package workerpool

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/bucketwatch/internal/testutil"
	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
)

// testTask counts executions and optionally fails, panics or blocks.
type testTask struct {
	duration    time.Duration
	shouldErr   bool
	shouldPanic bool
	executed    *int32
}

func (t *testTask) Execute(ctx context.Context) error {
	atomic.AddInt32(t.executed, 1)

	if t.shouldPanic {
		panic("test panic")
	}

	if t.duration > 0 {
		select {
		case <-time.After(t.duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if t.shouldErr {
		return errors.New("test error")
	}
	return nil
}

func shutdown(t *testing.T, p Pool) {
	t.Helper()
	select {
	case <-p.Shutdown():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("pool did not shut down")
	}
}

// submit retries TrySubmit until a worker or queue slot frees up.
func submit(t *testing.T, p Pool, task Task) {
	t.Helper()
	testutil.Eventually(t, func() bool { return p.TrySubmit(task) == nil }, time.Second, time.Millisecond)
}

func newTestRegistry() *metrics.Registry {
	return metrics.NewRegistry(prometheus.NewRegistry())
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name        string
		workerCount int
		queueSize   int
		expectPanic bool
	}{
		{"valid params", 2, 10, false},
		{"single worker", 1, 5, false},
		{"direct handoff", 3, 0, false},
		{"zero workers", 0, 10, true},
		{"negative workers", -1, 10, true},
		{"negative queue", 2, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Error("expected panic")
					}
				}()
			}

			pool := NewWithConfig(Config{WorkerCount: tt.workerCount, QueueSize: tt.queueSize})
			if !tt.expectPanic {
				testutil.AssertEqual(t, pool.Size(), tt.workerCount)
				shutdown(t, pool)
			}
		})
	}
}

func TestTaskExecution(t *testing.T) {
	var executed int32
	reg := newTestRegistry()
	pool := NewWithConfig(Config{Name: "exec", WorkerCount: 2, QueueSize: 10, Metrics: reg})

	for i := 0; i < 5; i++ {
		submit(t, pool, &testTask{executed: &executed})
	}
	submit(t, pool, &testTask{executed: &executed, shouldErr: true})

	shutdown(t, pool)

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(6))
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(6))
	testutil.AssertEqual(t, pool.ActiveWorkers(), 0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TasksCompleted.WithLabelValues("exec")), 5.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TasksFailed.WithLabelValues("exec")), 1.0)
}

func TestPanicRecovery(t *testing.T) {
	var executed int32
	reg := newTestRegistry()
	pool := NewWithConfig(Config{Name: "panics", WorkerCount: 1, QueueSize: 1, Metrics: reg})

	submit(t, pool, &testTask{executed: &executed, shouldPanic: true})
	submit(t, pool, &testTask{executed: &executed})
	shutdown(t, pool)

	// the worker survives the panic
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(2))
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TasksFailed.WithLabelValues("panics")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TasksCompleted.WithLabelValues("panics")), 1.0)
}

func TestPanicHandler(t *testing.T) {
	var executed int32
	recovered := make(chan interface{}, 1)

	pool := NewWithConfig(Config{
		WorkerCount:  1,
		QueueSize:    1,
		PanicHandler: func(_ Task, r interface{}) { recovered <- r },
	})
	defer shutdown(t, pool)

	submit(t, pool, &testTask{executed: &executed, shouldPanic: true})

	select {
	case r := <-recovered:
		testutil.AssertEqual(t, r, interface{}("test panic"))
	case <-time.After(testutil.TestTimeout):
		t.Fatal("panic handler not called")
	}
}

func TestTaskTimeout(t *testing.T) {
	errCh := make(chan error, 1)

	pool := NewWithConfig(Config{WorkerCount: 1, TaskTimeout: 20 * time.Millisecond})
	defer shutdown(t, pool)

	submit(t, pool, TaskFunc(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case <-time.After(testutil.TestTimeout):
			errCh <- nil
		}
		return nil
	}))

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(testutil.TestTimeout):
		t.Fatal("task was not timed out")
	}
}

func TestTrySubmit(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	pool := NewWithConfig(Config{WorkerCount: 1})
	defer shutdown(t, pool)

	blocking := TaskFunc(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	// with no queue the only worker must be idle to accept
	submit(t, pool, blocking)
	<-started

	err := pool.TrySubmit(TaskFunc(func(context.Context) error { return nil }))
	if !errors.Is(err, bwerrors.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	testutil.AssertEqual(t, pool.ActiveWorkers(), 1)

	close(release)
}

func TestSubmitNilTask(t *testing.T) {
	pool := NewWithConfig(Config{WorkerCount: 1, QueueSize: 1})
	defer shutdown(t, pool)

	testutil.AssertError(t, pool.TrySubmit(nil))
}

func TestShutdown(t *testing.T) {
	var executed int32
	pool := NewWithConfig(Config{WorkerCount: 1, QueueSize: 5})

	for i := 0; i < 5; i++ {
		submit(t, pool, &testTask{executed: &executed, duration: time.Millisecond})
	}

	done := pool.Shutdown()
	if again := pool.Shutdown(); again != done {
		t.Error("Shutdown should return the same channel")
	}

	select {
	case <-done:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("shutdown did not complete")
	}

	// queued tasks still run
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(5))

	err := pool.TrySubmit(&testTask{executed: &executed})
	if !errors.Is(err, bwerrors.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if !strings.Contains(err.Error(), "shut down") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPoolMetrics(t *testing.T) {
	reg := newTestRegistry()
	pool := NewWithConfig(Config{Name: "poller", WorkerCount: 2, QueueSize: 4, Metrics: reg})

	submit(t, pool, TaskFunc(func(context.Context) error { return nil }))
	submit(t, pool, TaskFunc(func(context.Context) error { return errors.New("boom") }))
	shutdown(t, pool)

	testutil.AssertEqual(t, promtest.ToFloat64(reg.TasksCompleted.WithLabelValues("poller")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TasksFailed.WithLabelValues("poller")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.WorkerPoolSize.WithLabelValues("poller")), 2.0)
}
