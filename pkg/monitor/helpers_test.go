package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/bucketwatch/internal/testutil"
	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	"github.com/vnykmshr/bucketwatch/pkg/model"
)

type fixture struct {
	fake   *testutil.FakeService
	svc    *bucketapi.Client
	store  *Store
	logs   *observer.ObservedLogs
	logger *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := testutil.NewFakeService(t)
	svc, err := bucketapi.NewClient(fake.URL(), time.Second)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	return &fixture{
		fake:   fake,
		svc:    svc,
		store:  NewStore(InitialState(0)),
		logs:   logs,
		logger: zap.New(core),
	}
}

func (f *fixture) poller() *Poller {
	return NewPoller(PollerConfig{
		Service:  f.svc,
		Store:    f.store,
		Location: time.UTC,
		Logger:   f.logger,
	})
}

// pollWith makes the fake report snap and runs one poll cycle.
func (f *fixture) pollWith(t *testing.T, p *Poller, snap model.Snapshot) {
	t.Helper()
	f.fake.SetSnapshot(snap)
	require.NoError(t, p.Tick(context.Background()))
}

// stubService lets tests block or fail individual calls.
type stubService struct {
	mu      sync.Mutex
	calls   map[string]int
	block   chan struct{}
	entered chan string
	err     error
}

func newStubService() *stubService {
	return &stubService{
		calls:   make(map[string]int),
		entered: make(chan string, 16),
	}
}

func (s *stubService) enter(ctx context.Context, name string) error {
	s.mu.Lock()
	s.calls[name]++
	block, err := s.block, s.err
	s.mu.Unlock()

	s.entered <- name
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *stubService) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubService) Metrics(ctx context.Context) (model.Snapshot, error) {
	if err := s.enter(ctx, "metrics"); err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{Timestamp: time.Now().Unix(), Capacity: 10}, nil
}

func (s *stubService) Probe(ctx context.Context) (bucketapi.Outcome, error) {
	if err := s.enter(ctx, "probe"); err != nil {
		return bucketapi.Failed, err
	}
	return bucketapi.Accepted, nil
}

func (s *stubService) UpdateConfig(ctx context.Context, _ model.Config) error {
	return s.enter(ctx, "config")
}

func (s *stubService) Reset(ctx context.Context) error {
	return s.enter(ctx, "reset")
}

func waitEntered(t *testing.T, s *stubService, name string) {
	t.Helper()
	select {
	case got := <-s.entered:
		require.Equal(t, name, got)
	case <-time.After(testutil.TestTimeout):
		t.Fatalf("%s was not called", name)
	}
}

// panickingService fails every metrics fetch with a panic.
type panickingService struct {
	*stubService
}

func (s *panickingService) Metrics(context.Context) (model.Snapshot, error) {
	panic("metrics decoder exploded")
}
