package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	tui "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vnykmshr/bucketwatch/internal/testutil"
	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/monitor"
)

func newTestModel(t *testing.T) (*model, *testutil.FakeService) {
	t.Helper()
	fake := testutil.NewFakeService(t)
	svc, err := bucketapi.NewClient(fake.URL(), time.Second)
	require.NoError(t, err)
	client, err := monitor.New(monitor.Config{Service: svc})
	require.NoError(t, err)
	return newModel(context.Background(), client, 0, zap.NewNop()), fake
}

func runes(s string) tui.KeyMsg {
	return tui.KeyMsg{Type: tui.KeyRunes, Runes: []rune(s)}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		name     string
		arg      string
		hasError bool
	}{
		{"count 5", "count", "5", false},
		{"  Capacity   20 ", "capacity", "20", false},
		{"rate 500ms", "rate", "500ms", false},
		{"rate", "rate", "", false},
		{"", "", "", true},
		{"speed 3", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, arg, err := parseCommand(tt.line)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestRunCommand(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, 1, m.burst)

	_, err := m.runCommand("count 7")
	require.NoError(t, err)
	assert.Equal(t, 7, m.burst)

	_, err = m.runCommand("count -2")
	require.NoError(t, err)
	assert.Equal(t, 1, m.burst)

	status, err := m.runCommand("capacity 0")
	require.NoError(t, err)
	assert.Equal(t, "draft capacity 1", status)
	assert.Equal(t, 1, m.client.State().Draft.Capacity)

	_, err = m.runCommand("rate 250ms")
	require.NoError(t, err)
	assert.Equal(t, "250ms", m.client.State().Draft.Rate)
}

func TestBurstKeys(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(runes("+"))
	m.Update(runes("+"))
	assert.Equal(t, 3, m.burst)

	for i := 0; i < 5; i++ {
		m.Update(runes("-"))
	}
	assert.Equal(t, 1, m.burst)
}

func TestSendKeyRunsBurst(t *testing.T) {
	m, fake := newTestModel(t)
	m.burst = 2

	_, cmd := m.Update(runes("s"))
	require.NotNil(t, cmd)

	msg := cmd().(actionMsg)
	require.NoError(t, msg.err)
	assert.Contains(t, msg.status, "2 accepted")
	assert.Equal(t, 2, fake.Calls("/api"))

	m.Update(msg)
	assert.Contains(t, m.View(), "2 accepted")
}

func TestApplyKeyReportsErrors(t *testing.T) {
	m, fake := newTestModel(t)
	fake.Fail("/config", 500)

	_, cmd := m.Update(runes("a"))
	msg := cmd().(actionMsg)
	require.Error(t, msg.err)

	m.Update(msg)
	assert.Contains(t, m.View(), "ERROR: update config")
	assert.Contains(t, m.View(), "press the key again to retry")
}

func TestErrorLine(t *testing.T) {
	throttled := &bwerrors.StatusError{Method: "POST", Path: "/reset", Code: http.StatusTooManyRequests}
	unavailable := &bwerrors.StatusError{Method: "POST", Path: "/config", Code: http.StatusServiceUnavailable}
	badRequest := &bwerrors.StatusError{Method: "POST", Path: "/config", Code: http.StatusBadRequest}

	assert.Contains(t, errorLine(fmt.Errorf("reset counters: %w", throttled)), "service is throttling")
	assert.Contains(t, errorLine(unavailable), "press the key again to retry")
	assert.Equal(t, "ERROR: "+badRequest.Error(), errorLine(badRequest))
	assert.Equal(t, "ERROR: "+bwerrors.ErrBusy.Error(), errorLine(bwerrors.ErrBusy))
}

func TestPollLine(t *testing.T) {
	assert.Equal(t, "polling stopped", pollLine(monitor.PollStatus{}))

	next := time.Date(2024, 1, 2, 12, 0, 5, 0, time.UTC)
	line := pollLine(monitor.PollStatus{
		Running: true, Spec: "1s", Next: next, Runs: 9, Skipped: 1, Busy: 1, Workers: 2,
	})
	assert.Equal(t, "polling 1s, next 12:00:05, 9 runs, 1 skipped, 1/2 workers busy", line)
}

func TestViewShowsPollStatus(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Contains(t, m.View(), "polling stopped")

	require.NoError(t, m.client.Start())
	defer func() { <-m.client.Stop() }()
	assert.Contains(t, m.View(), "polling 1s")
}

func TestEditorFlow(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(runes("e"))
	require.True(t, m.editing)

	// keys go to the editor, not the shortcuts
	m.Update(runes("count 4"))
	assert.Equal(t, 1, m.burst)

	m.Update(tui.KeyMsg{Type: tui.KeyEnter})
	assert.False(t, m.editing)
	assert.Equal(t, 4, m.burst)
	assert.Equal(t, "burst size 4", m.status)

	m.Update(runes("e"))
	m.Update(runes("rate 9s"))
	m.Update(tui.KeyMsg{Type: tui.KeyEsc})
	assert.False(t, m.editing)
	assert.Equal(t, "1s", m.client.State().Draft.Rate)
}

func TestStateMessagesUpdateView(t *testing.T) {
	m, _ := newTestModel(t)
	require.NoError(t, m.client.Poll(context.Background()))

	wait := m.waitForChange()
	_, err := m.client.SendBurst(context.Background(), 1)
	require.NoError(t, err)

	msg, ok := wait().(stateMsg)
	require.True(t, ok)
	m.Update(msg)
	assert.Equal(t, 1, m.state.History.Len())
	assert.True(t, strings.Contains(m.View(), "Send 1 Request"))
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tui.Quit(), cmd())
}
