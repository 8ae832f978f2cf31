package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/history"
	"github.com/vnykmshr/bucketwatch/pkg/model"
)

func TestInitialState(t *testing.T) {
	s := InitialState(0)

	assert.Equal(t, model.DefaultCapacity, s.Metrics.Capacity)
	assert.Zero(t, s.Metrics.Total)
	assert.Equal(t, model.DefaultConfig(), s.Draft)
	assert.True(t, s.Applied.IsZero())
	assert.Equal(t, history.DefaultSize, s.History.Cap())
	assert.Zero(t, s.History.Len())
	for _, k := range []ActionKind{SendBurst, UpdateConfig, ResetCounters} {
		assert.Equal(t, Idle, s.Action(k), k.String())
	}
}

func TestActionStrings(t *testing.T) {
	assert.Equal(t, "send", SendBurst.String())
	assert.Equal(t, "config", UpdateConfig.String())
	assert.Equal(t, "reset", ResetCounters.String())
	assert.Equal(t, "ActionKind(7)", ActionKind(7).String())
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "in-flight", InFlight.String())
}

func TestStoreUpdate(t *testing.T) {
	store := NewStore(InitialState(3))
	changed := store.Changed()

	next := store.Update(func(s State) State {
		s.Metrics.Total = 5
		return s
	})

	assert.Equal(t, uint64(1), next.Version)
	assert.Equal(t, uint64(5), store.Snapshot().Metrics.Total)

	select {
	case <-changed:
	default:
		t.Fatal("Changed channel not closed by Update")
	}

	select {
	case <-store.Changed():
		t.Fatal("new Changed channel should stay open until the next update")
	default:
	}
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewStore(InitialState(3))
	store.Update(func(s State) State {
		s.History = s.History.Append(model.HistoryPoint{Label: "a"})
		return s
	})

	before := store.Snapshot()
	store.Update(func(s State) State {
		s.History = s.History.Append(model.HistoryPoint{Label: "b"})
		return s
	})

	assert.Equal(t, 1, before.History.Len())
	assert.Equal(t, 2, store.Snapshot().History.Len())
}

func TestGuard(t *testing.T) {
	store := NewStore(InitialState(0))
	g := newGuard(UpdateConfig, store, nil)

	require.NoError(t, g.enter())
	assert.Equal(t, InFlight, store.Snapshot().Config)
	assert.Equal(t, Idle, store.Snapshot().Send)

	err := g.enter()
	require.Error(t, err)
	assert.True(t, errors.Is(err, bwerrors.ErrBusy))

	g.exit(func(s State) State {
		s.Applied = model.Config{Capacity: 3, Rate: "2s"}
		return s
	})
	st := store.Snapshot()
	assert.Equal(t, Idle, st.Config)
	assert.Equal(t, 3, st.Applied.Capacity)

	require.NoError(t, g.enter())
	g.exit(nil)
}

func TestGuardsOfDifferentKindsOverlap(t *testing.T) {
	store := NewStore(InitialState(0))
	send := newGuard(SendBurst, store, nil)
	reset := newGuard(ResetCounters, store, nil)

	require.NoError(t, send.enter())
	require.NoError(t, reset.enter())

	st := store.Snapshot()
	assert.Equal(t, InFlight, st.Send)
	assert.Equal(t, InFlight, st.Reset)
	assert.Equal(t, Idle, st.Config)

	send.exit(nil)
	reset.exit(nil)
}

func TestChangedWakesWaiter(t *testing.T) {
	store := NewStore(InitialState(0))
	ch := store.Changed()

	go store.Update(func(s State) State { return s })

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}
