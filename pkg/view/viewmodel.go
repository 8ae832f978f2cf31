// Package view derives display values from monitor state and renders them
// as a terminal dashboard.
package view

import (
	"math"
	"strconv"

	"github.com/vnykmshr/bucketwatch/pkg/model"
	"github.com/vnykmshr/bucketwatch/pkg/monitor"
)

// Axis is the vertical range of the level chart.
type Axis struct {
	Min   int
	Max   int
	Ticks int
}

// NewAxis leaves two units of headroom above capacity and one tick per unit.
func NewAxis(capacity int) Axis {
	return Axis{Min: 0, Max: capacity + 2, Ticks: capacity + 1}
}

// FillRatio is level/capacity clamped to [0, 1]; 0 when capacity is not positive.
func FillRatio(level, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	r := float64(level) / float64(capacity)
	return math.Max(0, math.Min(1, r))
}

// RejectionPercent is rejected/total as a whole percentage, halves rounded
// up; 0 when nothing has been counted.
func RejectionPercent(rejected, total uint64) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(rejected)/float64(total)*100 + 0.5))
}

// SendLabel is the caption of the burst button.
func SendLabel(n int, state monitor.ActionState) string {
	if state == monitor.InFlight {
		return "Sending..."
	}
	if n == 1 {
		return "Send 1 Request"
	}
	return "Send " + strconv.Itoa(n) + " Requests"
}

// ConfigLabel is the caption of the apply button.
func ConfigLabel(state monitor.ActionState) string {
	if state == monitor.InFlight {
		return "Updating..."
	}
	return "Update Configuration"
}

// ResetLabel is the caption of the reset button.
func ResetLabel(state monitor.ActionState) string {
	if state == monitor.InFlight {
		return "Resetting..."
	}
	return "Reset Statistics"
}

// Model is everything the dashboard shows, computed from one State.
type Model struct {
	Level    int
	Capacity int
	Fill     float64

	Total            uint64
	Allowed          uint64
	Rejected         uint64
	RejectionPercent int

	Axis   Axis
	Levels []float64
	Labels []string
	// Updated is the label of the newest history point, empty before the
	// first successful poll.
	Updated string

	Draft   model.Config
	Applied model.Config
	Burst   int

	SendLabel   string
	ConfigLabel string
	ResetLabel  string
	Busy        bool
}

// New derives the dashboard model. burst is the operator's pending burst size.
func New(st monitor.State, burst int) Model {
	m := st.Metrics
	points := st.History.Points()
	labels := make([]string, len(points))
	for i, p := range points {
		labels[i] = p.Label
	}
	var updated string
	if last, ok := st.History.Last(); ok {
		updated = last.Label
	}

	return Model{
		Level:            m.CurrentLevel,
		Capacity:         m.Capacity,
		Fill:             FillRatio(m.CurrentLevel, m.Capacity),
		Total:            m.Total,
		Allowed:          m.Allowed,
		Rejected:         m.Rejected,
		RejectionPercent: RejectionPercent(m.Rejected, m.Total),
		Axis:             NewAxis(m.Capacity),
		Levels:           st.History.Levels(),
		Labels:           labels,
		Updated:          updated,
		Draft:            st.Draft,
		Applied:          st.Applied,
		Burst:            burst,
		SendLabel:        SendLabel(burst, st.Send),
		ConfigLabel:      ConfigLabel(st.Config),
		ResetLabel:       ResetLabel(st.Reset),
		Busy:             st.Send == monitor.InFlight || st.Config == monitor.InFlight || st.Reset == monitor.InFlight,
	}
}
