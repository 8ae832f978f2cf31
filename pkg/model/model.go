package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultCapacity is the bucket capacity assumed before the first snapshot arrives.
	DefaultCapacity = 10

	// DefaultRate is the leak rate offered in a fresh draft.
	DefaultRate = "1s"

	// LabelLayout formats history point labels.
	LabelLayout = "15:04:05"
)

// Snapshot is one read of GET /metrics.
type Snapshot struct {
	Timestamp    int64  `json:"timestamp"`
	Total        uint64 `json:"total"`
	Allowed      uint64 `json:"allowed"`
	Rejected     uint64 `json:"rejected"`
	CurrentLevel int    `json:"current_level"`
	Capacity     int    `json:"capacity"`
}

// InitialSnapshot is displayed until the first successful poll.
func InitialSnapshot() Snapshot {
	return Snapshot{Capacity: DefaultCapacity}
}

// Time returns the snapshot timestamp.
func (s Snapshot) Time() time.Time {
	return time.Unix(s.Timestamp, 0)
}

// WithCountersReset returns a copy with the cumulative counters zeroed.
// Occupancy and capacity describe the bucket right now and are kept.
func (s Snapshot) WithCountersReset() Snapshot {
	s.Total = 0
	s.Allowed = 0
	s.Rejected = 0
	return s
}

// Consistent reports whether allowed+rejected adds up to total.
// The service is trusted, so nothing enforces this.
func (s Snapshot) Consistent() bool {
	return s.Allowed+s.Rejected == s.Total
}

// HistoryPoint is a snapshot tagged with its chart label.
type HistoryPoint struct {
	Snapshot
	Label string `json:"time"`
}

// NewHistoryPoint derives a chart point from snap, labelled in loc.
func NewHistoryPoint(snap Snapshot, loc *time.Location) HistoryPoint {
	if loc == nil {
		loc = time.Local
	}
	return HistoryPoint{
		Snapshot: snap,
		Label:    snap.Time().In(loc).Format(LabelLayout),
	}
}

// Config is the service configuration: capacity >= 1 and a non-empty rate.
type Config struct {
	Capacity int    `json:"capacity"`
	Rate     string `json:"rate"`
}

// DefaultConfig is the draft offered at start-up.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity, Rate: DefaultRate}
}

// IsZero reports whether c was never set.
func (c Config) IsZero() bool {
	return c.Capacity == 0 && c.Rate == ""
}

// Form encodes c as the POST /config form body.
func (c Config) Form() url.Values {
	return url.Values{
		"capacity": {strconv.Itoa(c.Capacity)},
		"rate":     {strings.TrimSpace(c.Rate)},
	}
}

func (c Config) String() string {
	return "capacity=" + strconv.Itoa(c.Capacity) + " rate=" + c.Rate
}
