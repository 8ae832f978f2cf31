package monitor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	"github.com/vnykmshr/bucketwatch/pkg/common/validation"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
	"github.com/vnykmshr/bucketwatch/pkg/model"
)

// Reconciler edits the draft configuration and submits it to the service.
type Reconciler struct {
	service bucketapi.Service
	store   *Store
	guard   *guard
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewReconciler creates a reconciler guarded by the store's config action state.
func NewReconciler(service bucketapi.Service, store *Store, logger *zap.Logger, reg *metrics.Registry) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		service: service,
		store:   store,
		guard:   newGuard(UpdateConfig, store, reg),
		logger:  logger.Named("reconciler"),
		metrics: reg,
	}
}

// SetDraftCapacity stores the capacity typed by the operator, coerced to at
// least 1, and returns the value kept.
func (r *Reconciler) SetDraftCapacity(input string) int {
	capacity := validation.AtLeastOne(input)
	r.store.Update(func(s State) State {
		s.Draft.Capacity = capacity
		return s
	})
	return capacity
}

// SetDraftRate stores the rate as typed. It is validated on Apply.
func (r *Reconciler) SetDraftRate(rate string) {
	r.store.Update(func(s State) State {
		s.Draft.Rate = rate
		return s
	})
}

// Draft returns the configuration that Apply would submit.
func (r *Reconciler) Draft() model.Config {
	return normalize(r.store.Snapshot().Draft)
}

func normalize(c model.Config) model.Config {
	return model.Config{
		Capacity: validation.ClampMin(c.Capacity, 1),
		Rate:     strings.TrimSpace(c.Rate),
	}
}

// Apply submits the draft as one request. On success the history is
// cleared and the submitted config becomes Applied; the draft is left as
// the operator last edited it. On failure nothing local changes. An empty rate is refused without contacting the service.
// A submitted update is not abandoned when ctx is cancelled; the HTTP
// client timeout bounds it.
func (r *Reconciler) Apply(ctx context.Context) (model.Config, error) {
	cfg := r.Draft()
	if err := validation.ValidateNotEmpty("config", "rate", cfg.Rate); err != nil {
		r.metrics.ObserveAction(UpdateConfig.String(), err)
		return model.Config{}, err
	}

	if err := r.guard.enter(); err != nil {
		return model.Config{}, err
	}

	if err := r.service.UpdateConfig(context.WithoutCancel(ctx), cfg); err != nil {
		r.guard.exit(nil)
		r.metrics.ObserveAction(UpdateConfig.String(), err)
		r.logger.Error("update config failed", zap.Stringer("config", cfg), zap.Error(err))
		return model.Config{}, fmt.Errorf("update config: %w", err)
	}

	r.guard.exit(func(s State) State {
		s.History = s.History.Clear()
		s.Applied = cfg
		return s
	})
	r.metrics.ObserveAction(UpdateConfig.String(), nil)
	r.logger.Info("config applied", zap.Stringer("config", cfg))
	return cfg, nil
}
