package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
	"github.com/vnykmshr/bucketwatch/pkg/common/validation"
	"github.com/vnykmshr/bucketwatch/pkg/monitor"
	"github.com/vnykmshr/bucketwatch/pkg/view"
)

var (
	statusStyle = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "2", Dark: "10"})
	errStyle    = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
	mutedStyle  = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "245", Dark: "241"})
)

// stateMsg carries a new state generation from the store.
type stateMsg struct {
	state monitor.State
}

// actionMsg reports the end of an operator action.
type actionMsg struct {
	status string
	err    error
}

type model struct {
	ctx    context.Context
	client *monitor.Client
	logger *zap.Logger

	state monitor.State
	burst int
	width int

	editing bool
	input   textinput.Model
	help    help.Model

	status string
	err    error
}

func newModel(ctx context.Context, client *monitor.Client, burst int, logger *zap.Logger) *model {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "count 5 | capacity 20 | rate 500ms"
	in.CharLimit = 64

	return &model{
		ctx:    ctx,
		client: client,
		logger: logger,
		state:  client.State(),
		burst:  validation.ClampMin(burst, 1),
		input:  in,
		help:   help.New(),
	}
}

// waitForChange delivers the next state generation.
func (m *model) waitForChange() tui.Cmd {
	changed := m.client.Changed()
	return func() tui.Msg {
		select {
		case <-changed:
			return stateMsg{state: m.client.State()}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *model) Init() tui.Cmd {
	return m.waitForChange()
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = msg.state
		return m, m.waitForChange()
	case actionMsg:
		m.status, m.err = msg.status, msg.err
		return m, nil
	case tui.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case tui.KeyMsg:
		if m.editing {
			return m.updateEditor(msg)
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tui.Quit
		case key.Matches(msg, keys.Send):
			return m, m.sendBurst()
		case key.Matches(msg, keys.Apply):
			return m, m.applyConfig()
		case key.Matches(msg, keys.Reset):
			return m, m.resetCounters()
		case key.Matches(msg, keys.More):
			m.burst++
		case key.Matches(msg, keys.Less):
			m.burst = validation.ClampMin(m.burst-1, 1)
		case key.Matches(msg, keys.Edit):
			m.editing = true
			m.input.Reset()
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m *model) updateEditor(msg tui.KeyMsg) (tui.Model, tui.Cmd) {
	switch msg.Type {
	case tui.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	case tui.KeyEnter:
		m.editing = false
		m.input.Blur()
		m.status, m.err = m.runCommand(m.input.Value())
		return m, nil
	}

	var cmd tui.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// runCommand applies one editor line to the burst size or the draft config.
func (m *model) runCommand(line string) (string, error) {
	name, arg, err := parseCommand(line)
	if err != nil {
		return "", err
	}
	m.logger.Debug("editor command", zap.String("command", name), zap.String("arg", arg))
	switch name {
	case "count":
		m.burst = validation.AtLeastOne(arg)
		return fmt.Sprintf("burst size %d", m.burst), nil
	case "capacity":
		return fmt.Sprintf("draft capacity %d", m.client.SetDraftCapacity(arg)), nil
	default: // rate
		m.client.SetDraftRate(arg)
		return fmt.Sprintf("draft rate %q", strings.TrimSpace(arg)), nil
	}
}

func parseCommand(line string) (name, arg string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", fmt.Errorf("empty command")
	}
	name = strings.ToLower(fields[0])
	arg = strings.Join(fields[1:], " ")
	switch name {
	case "count", "capacity", "rate":
		return name, arg, nil
	}
	return "", "", fmt.Errorf("unknown command %q (use count, capacity or rate)", fields[0])
}

func (m *model) sendBurst() tui.Cmd {
	n := m.burst
	return func() tui.Msg {
		res, err := m.client.SendBurst(m.ctx, n)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("sent %d: %d accepted, %d rejected, %d failed in %s",
			res.Requested, res.Accepted, res.Rejected, res.Failed, res.Duration.Round(time.Millisecond))}
	}
}

func (m *model) applyConfig() tui.Cmd {
	return func() tui.Msg {
		cfg, err := m.client.ApplyConfig(m.ctx)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "configuration applied: " + cfg.String()}
	}
}

func (m *model) resetCounters() tui.Cmd {
	return func() tui.Msg {
		if err := m.client.Reset(m.ctx); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "statistics reset"}
	}
}

func (m *model) View() string {
	parts := []string{view.Render(view.New(m.state, m.burst), m.width)}

	if m.editing {
		parts = append(parts, m.input.View())
	}
	switch {
	case m.err != nil:
		parts = append(parts, errStyle.Render(errorLine(m.err)))
	case m.status != "":
		parts = append(parts, statusStyle.Render(m.status))
	}
	parts = append(parts, mutedStyle.Render(pollLine(m.client.PollStatus())))
	parts = append(parts, m.help.View(keys))

	return styles.JoinVertical(styles.Left, parts...)
}

// errorLine tells the operator whether trying the action again can help.
func errorLine(err error) string {
	msg := "ERROR: " + err.Error()
	switch {
	case errors.Is(err, bwerrors.ErrBusy):
		return msg
	case errors.Is(err, bwerrors.ErrRateLimited):
		return msg + " (service is throttling, try again shortly)"
	case bwerrors.IsRetryable(err):
		return msg + " (temporary, press the key again to retry)"
	}
	return msg
}

func pollLine(ps monitor.PollStatus) string {
	if !ps.Running {
		return "polling stopped"
	}
	return fmt.Sprintf("polling %s, next %s, %d runs, %d skipped, %d/%d workers busy",
		ps.Spec, ps.Next.Format("15:04:05"), ps.Runs, ps.Skipped, ps.Busy, ps.Workers)
}

type keyMap struct {
	Send  key.Binding
	Apply key.Binding
	Reset key.Binding
	Edit  key.Binding
	More  key.Binding
	Less  key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Apply, k.Reset, k.Edit, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.More, k.Less},
		{k.Apply, k.Reset, k.Edit},
		{k.Quit},
	}
}

var keys = keyMap{
	Send: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "send burst"),
	),
	Apply: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "apply config"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset stats"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e", ":"),
		key.WithHelp("e", "edit"),
	),
	More: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "larger burst"),
	),
	Less: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "smaller burst"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}
