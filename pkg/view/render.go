package view

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "241"})
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"})
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	buttonStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

// sparkRunes are eighth-height blocks, lowest first.
var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws values scaled to [lo, hi], one rune per value, keeping
// the newest width values. An empty series renders as an empty string.
func Sparkline(values []float64, lo, hi float64, width int) string {
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}
	span := hi - lo
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if span > 0 {
			f := (v - lo) / span
			f = math.Max(0, math.Min(1, f))
			idx = int(math.Round(f * float64(len(sparkRunes)-1)))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// Gauge draws a horizontal bar filled to ratio.
func Gauge(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(math.Max(0, math.Min(1, ratio)) * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Render lays the dashboard out for a terminal width columns wide.
func Render(m Model, width int) string {
	if width <= 0 {
		width = 80
	}
	inner := width - 4
	if inner < 10 {
		inner = 10
	}

	chart := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Bucket level"),
		Sparkline(m.Levels, float64(m.Axis.Min), float64(m.Axis.Max), inner),
		axisLine(m, inner),
	)

	fillPct := int(math.Round(m.Fill * 100))
	gaugeStyle := okStyle
	if m.Fill >= 1 {
		gaugeStyle = badStyle
	}
	level := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Current level"),
		gaugeStyle.Render(Gauge(m.Fill, inner)),
		fmt.Sprintf("%d / %d (%d%%)", m.Level, m.Capacity, fillPct),
		mutedStyle.Render(updatedLine(m)),
	)

	stats := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Request statistics"),
		"Total:    "+count(m.Total),
		"Allowed:  "+okStyle.Render(count(m.Allowed)),
		"Rejected: "+badStyle.Render(count(m.Rejected))+
			fmt.Sprintf(" (%d%%)", m.RejectionPercent),
	)

	applied := "not yet applied"
	if !m.Applied.IsZero() {
		applied = m.Applied.String()
	}
	config := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Configuration"),
		"Draft:   "+m.Draft.String(),
		"Applied: "+mutedStyle.Render(applied),
	)

	buttons := lipgloss.JoinHorizontal(lipgloss.Top,
		buttonStyle.Render(m.SendLabel),
		buttonStyle.Render(m.ConfigLabel),
		buttonStyle.Render(m.ResetLabel),
	)

	panel := panelStyle.Width(width - 2)
	return lipgloss.JoinVertical(lipgloss.Left,
		panel.Render(chart),
		panel.Render(level),
		panel.Render(stats),
		panel.Render(config),
		buttons,
	)
}

// count formats a counter with thousands separators over the full uint64 range.
func count(n uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(n))
}

func updatedLine(m Model) string {
	if m.Updated == "" {
		return "not polled yet"
	}
	return "updated " + m.Updated
}

// axisLine prints the first and last history labels under the sparkline
// together with the axis range.
func axisLine(m Model, width int) string {
	rng := fmt.Sprintf("0..%d", m.Axis.Max)
	if len(m.Labels) == 0 {
		return mutedStyle.Render("waiting for data  " + rng)
	}
	first, last := m.Labels[0], m.Labels[len(m.Labels)-1]
	gap := width - len(first) - len(last) - len(rng)
	if gap < 2 {
		return mutedStyle.Render(last + " " + rng)
	}
	left := gap / 2
	return mutedStyle.Render(first + strings.Repeat(" ", left) + rng + strings.Repeat(" ", gap-left) + last)
}
