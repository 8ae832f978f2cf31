package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	"github.com/vnykmshr/bucketwatch/pkg/history"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
	"github.com/vnykmshr/bucketwatch/pkg/model"
)

// Config holds the dependencies and tunables of a Client.
type Config struct {
	Service bucketapi.Service

	PollInterval time.Duration
	PollSchedule string
	PollWorkers  int

	// HistorySize defaults to history.DefaultSize.
	HistorySize int
	Location    *time.Location

	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// Client is the monitoring and control engine for one admission service.
type Client struct {
	store      *Store
	poller     *Poller
	dispatcher *Dispatcher
	reconciler *Reconciler
	resetter   *Resetter
	logger     *zap.Logger
}

// New wires a client around cfg.Service. Call Start to begin polling.
func New(cfg Config) (*Client, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("monitor: service is required")
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = history.DefaultSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	store := NewStore(InitialState(cfg.HistorySize))
	return &Client{
		store: store,
		poller: NewPoller(PollerConfig{
			Service:  cfg.Service,
			Store:    store,
			Interval: cfg.PollInterval,
			Schedule: cfg.PollSchedule,
			Workers:  cfg.PollWorkers,
			Location: cfg.Location,
			Logger:   cfg.Logger,
			Metrics:  cfg.Metrics,
		}),
		dispatcher: NewDispatcher(cfg.Service, store, cfg.Logger, cfg.Metrics),
		reconciler: NewReconciler(cfg.Service, store, cfg.Logger, cfg.Metrics),
		resetter:   NewResetter(cfg.Service, store, cfg.Logger, cfg.Metrics),
		logger:     cfg.Logger,
	}, nil
}

// Start begins polling.
func (c *Client) Start() error {
	return c.poller.Start()
}

// Stop ends polling; see Poller.Stop.
func (c *Client) Stop() <-chan struct{} {
	return c.poller.Stop()
}

// State returns the current state generation.
func (c *Client) State() State {
	return c.store.Snapshot()
}

// Changed returns a channel closed by the next state change.
func (c *Client) Changed() <-chan struct{} {
	return c.store.Changed()
}

// PollStatus reports the polling schedule and worker usage.
func (c *Client) PollStatus() PollStatus {
	return c.poller.Status()
}

// Poll performs one fetch immediately, outside the schedule.
func (c *Client) Poll(ctx context.Context) error {
	return c.poller.Tick(ctx)
}

// SendBurst sends n probes sequentially.
func (c *Client) SendBurst(ctx context.Context, n int) (BurstResult, error) {
	return c.dispatcher.Send(ctx, n)
}

// SendBurstInput sends a burst whose size is given as operator input.
func (c *Client) SendBurstInput(ctx context.Context, input string) (BurstResult, error) {
	return c.dispatcher.SendInput(ctx, input)
}

// SetDraftCapacity updates the draft capacity from operator input.
func (c *Client) SetDraftCapacity(input string) int {
	return c.reconciler.SetDraftCapacity(input)
}

// SetDraftRate updates the draft rate.
func (c *Client) SetDraftRate(rate string) {
	c.reconciler.SetDraftRate(rate)
}

// ApplyConfig submits the draft configuration.
func (c *Client) ApplyConfig(ctx context.Context) (model.Config, error) {
	return c.reconciler.Apply(ctx)
}

// Reset zeroes the service counters.
func (c *Client) Reset(ctx context.Context) error {
	return c.resetter.Reset(ctx)
}
