package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	"github.com/vnykmshr/bucketwatch/pkg/common/validation"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
)

// BurstResult summarizes one burst of probes.
type BurstResult struct {
	ID        uuid.UUID
	Requested int
	Accepted  int
	Rejected  int
	Failed    int
	Duration  time.Duration
}

// Dispatcher sends bursts of admission probes, one probe at a time.
type Dispatcher struct {
	service bucketapi.Service
	guard   *guard
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewDispatcher creates a dispatcher guarded by the store's send action state.
func NewDispatcher(service bucketapi.Service, store *Store, logger *zap.Logger, reg *metrics.Registry) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		service: service,
		guard:   newGuard(SendBurst, store, reg),
		logger:  logger.Named("dispatcher"),
		metrics: reg,
	}
}

// SendInput parses a burst size as typed by the operator and sends it.
func (d *Dispatcher) SendInput(ctx context.Context, input string) (BurstResult, error) {
	return d.Send(ctx, validation.AtLeastOne(input))
}

// Send issues max(n, 1) probes. Probe k+1 starts only after probe k has
// settled. Individual probe failures are logged and counted; the burst
// carries on. Once started a burst runs to completion regardless of ctx
// cancellation. A burst requested while another is running fails with
// errors.ErrBusy and sends nothing.
func (d *Dispatcher) Send(ctx context.Context, n int) (BurstResult, error) {
	n = validation.ClampMin(n, 1)
	if err := d.guard.enter(); err != nil {
		return BurstResult{}, err
	}
	defer d.guard.exit(nil)

	ctx = context.WithoutCancel(ctx)
	res := BurstResult{ID: uuid.New(), Requested: n}
	log := d.logger.With(zap.String("burst_id", res.ID.String()))
	log.Debug("burst started", zap.Int("requested", n))

	start := time.Now()
	for i := 0; i < n; i++ {
		outcome, err := d.service.Probe(ctx)
		d.metrics.ObserveProbe(outcome.String())

		switch outcome {
		case bucketapi.Accepted:
			res.Accepted++
		case bucketapi.Rejected:
			res.Rejected++
		default:
			res.Failed++
			log.Warn("probe failed", zap.Int("probe", i+1), zap.Error(err))
		}
	}
	res.Duration = time.Since(start)

	d.metrics.ObserveAction(SendBurst.String(), nil)
	log.Info("burst finished",
		zap.Int("requested", res.Requested),
		zap.Int("accepted", res.Accepted),
		zap.Int("rejected", res.Rejected),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration))
	return res, nil
}
