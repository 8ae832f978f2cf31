package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
)

// Resetter zeroes the service counters and mirrors that locally.
type Resetter struct {
	service bucketapi.Service
	guard   *guard
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewResetter creates a resetter guarded by the store's reset action state.
func NewResetter(service bucketapi.Service, store *Store, logger *zap.Logger, reg *metrics.Registry) *Resetter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resetter{
		service: service,
		guard:   newGuard(ResetCounters, store, reg),
		logger:  logger.Named("reset"),
		metrics: reg,
	}
}

// Reset asks the service to zero its counters. On success the history is
// cleared and total, allowed and rejected drop to zero in one generation;
// level and capacity are kept. On failure local state is untouched. Like
// Apply, a started reset runs to completion even if ctx is cancelled.
func (r *Resetter) Reset(ctx context.Context) error {
	if err := r.guard.enter(); err != nil {
		return err
	}

	if err := r.service.Reset(context.WithoutCancel(ctx)); err != nil {
		r.guard.exit(nil)
		r.metrics.ObserveAction(ResetCounters.String(), err)
		r.logger.Error("reset failed", zap.Error(err))
		return fmt.Errorf("reset counters: %w", err)
	}

	r.guard.exit(func(s State) State {
		s.History = s.History.Clear()
		s.Metrics = s.Metrics.WithCountersReset()
		return s
	})
	r.metrics.ObserveAction(ResetCounters.String(), nil)
	r.logger.Info("counters reset")
	return nil
}
