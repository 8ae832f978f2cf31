package monitor

import (
	"fmt"
	"sync"

	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/concurrency"
	"github.com/vnykmshr/bucketwatch/pkg/history"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
	"github.com/vnykmshr/bucketwatch/pkg/model"
)

// ActionKind identifies an operator action.
type ActionKind int

const (
	SendBurst ActionKind = iota
	UpdateConfig
	ResetCounters
)

var actionKindStrings = [...]string{"send", "config", "reset"}

func (k ActionKind) String() string {
	if k < 0 || int(k) >= len(actionKindStrings) {
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
	return actionKindStrings[k]
}

// ActionState is Idle or InFlight.
type ActionState int

const (
	Idle ActionState = iota
	InFlight
)

func (s ActionState) String() string {
	if s == InFlight {
		return "in-flight"
	}
	return "idle"
}

// State is one complete generation of client state. Values handed out by
// the Store are never mutated afterwards.
type State struct {
	Metrics model.Snapshot
	History history.Buffer
	Draft   model.Config
	// Applied is zero until the service first accepts a configuration.
	Applied model.Config

	Send   ActionState
	Config ActionState
	Reset  ActionState

	// Version increases by one with every mutation.
	Version uint64
}

// Action returns the state of the given action kind.
func (s State) Action(kind ActionKind) ActionState {
	switch kind {
	case SendBurst:
		return s.Send
	case UpdateConfig:
		return s.Config
	case ResetCounters:
		return s.Reset
	}
	return Idle
}

func (s State) withAction(kind ActionKind, as ActionState) State {
	switch kind {
	case SendBurst:
		s.Send = as
	case UpdateConfig:
		s.Config = as
	case ResetCounters:
		s.Reset = as
	}
	return s
}

// InitialState is the state before the first poll.
func InitialState(historySize int) State {
	return State{
		Metrics: model.InitialSnapshot(),
		History: history.New(historySize),
		Draft:   model.DefaultConfig(),
	}
}

// Store holds the current State and replaces it whole on every mutation.
type Store struct {
	mu      sync.Mutex
	state   State
	changed chan struct{}
}

// NewStore creates a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial, changed: make(chan struct{})}
}

// Snapshot returns the current generation.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Changed returns a channel that is closed by the next mutation.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Update derives the next generation from the current one with fn and
// publishes it. fn must not call back into the store.
func (s *Store) Update(fn func(State) State) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.state)
	next.Version = s.state.Version + 1
	s.state = next

	close(s.changed)
	s.changed = make(chan struct{})
	return next
}

// guard admits one action of a kind at a time and mirrors that in the store.
type guard struct {
	kind    ActionKind
	permit  concurrency.Limiter
	store   *Store
	metrics *metrics.Registry
}

func newGuard(kind ActionKind, store *Store, reg *metrics.Registry) *guard {
	return &guard{
		kind:    kind,
		permit:  concurrency.New(1),
		store:   store,
		metrics: reg,
	}
}

// enter marks the action InFlight, or fails with ErrBusy if it already is.
func (g *guard) enter() error {
	if !g.permit.TryAcquire() {
		return fmt.Errorf("%s: %w", g.kind, bwerrors.ErrBusy)
	}
	g.store.Update(func(s State) State {
		return s.withAction(g.kind, InFlight)
	})
	g.metrics.SetInFlight(g.kind.String(), true)
	return nil
}

// exit applies mutate (may be nil) and marks the action Idle in the same
// generation, then frees the permit.
func (g *guard) exit(mutate func(State) State) {
	g.store.Update(func(s State) State {
		if mutate != nil {
			s = mutate(s)
		}
		return s.withAction(g.kind, Idle)
	})
	g.metrics.SetInFlight(g.kind.String(), false)
	g.permit.Release()
}
