// Package concurrency bounds how many operations of one kind run at once.
//
// The monitor keeps a one-permit Limiter per operator action so that a
// second burst, config update or reset is refused while the first is still
// in flight, without blocking actions of other kinds.
package concurrency

import (
	"github.com/vnykmshr/bucketwatch/pkg/common/errors"
)

// Limiter is a counting semaphore with non-blocking acquisition.
type Limiter interface {
	// TryAcquire takes one permit if one is free and reports whether it did.
	TryAcquire() bool

	// Release returns one permit. It panics if no permit is held.
	Release()
}

type limiter struct {
	permits chan struct{}
}

// New creates a limiter with the given capacity.
// It panics with a *errors.ValidationError if capacity is not positive.
func New(capacity int) Limiter {
	if capacity <= 0 {
		panic(errors.NewValidationError("concurrency", "capacity", capacity, "capacity must be positive").
			WithHint("capacity determines how many operations may run at once"))
	}
	return &limiter{permits: make(chan struct{}, capacity)}
}

func (l *limiter) TryAcquire() bool {
	select {
	case l.permits <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *limiter) Release() {
	select {
	case <-l.permits:
	default:
		panic("concurrency: released more permits than acquired")
	}
}
