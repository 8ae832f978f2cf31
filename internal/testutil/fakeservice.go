package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/bucketwatch/pkg/model"
)

// FakeService is an in-process stand-in for the admission service.
//
// Probes are admitted while the level is below capacity and never drain;
// tests move the level explicitly with SetSnapshot. Each endpoint can be
// switched to fail with a status code, and probes can be held on a gate to
// observe ordering.
type FakeService struct {
	Server *httptest.Server

	mu        sync.Mutex
	snap      model.Snapshot
	config    model.Config
	failCodes map[string]int
	calls     map[string]int
	probeLog  []string
	gate      chan struct{}
	clock     func() time.Time

	probeInFlight    int32
	maxProbeInFlight int32
	probeSeq         int64
}

// NewFakeService starts a fake service that is closed when the test ends.
func NewFakeService(t *testing.T) *FakeService {
	t.Helper()

	f := &FakeService{
		snap:      model.InitialSnapshot(),
		config:    model.DefaultConfig(),
		failCodes: make(map[string]int),
		calls:     make(map[string]int),
		clock:     time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", f.handleMetrics)
	mux.HandleFunc("/api", f.handleProbe)
	mux.HandleFunc("/config", f.handleConfig)
	mux.HandleFunc("/reset", f.handleReset)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// URL returns the base URL of the fake.
func (f *FakeService) URL() string {
	return f.Server.URL
}

// Close stops the server, releasing any probe held on the gate.
func (f *FakeService) Close() {
	f.mu.Lock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
	f.mu.Unlock()
	f.Server.Close()
}

// SetSnapshot replaces the counters and occupancy reported by GET /metrics.
func (f *FakeService) SetSnapshot(s model.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

// Snapshot returns the fake's current counters.
func (f *FakeService) Snapshot() model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Config returns the last configuration accepted by POST /config.
func (f *FakeService) Config() model.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// Fail makes path answer with code until Recover is called.
func (f *FakeService) Fail(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCodes[path] = code
}

// Recover clears a failure set with Fail.
func (f *FakeService) Recover(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failCodes, path)
}

// Calls returns how many requests path has received.
func (f *FakeService) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// HoldProbes makes every probe wait for a Release before answering.
func (f *FakeService) HoldProbes() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

// Release lets exactly one held probe answer. It blocks until a probe takes it.
func (f *FakeService) Release() {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate <- struct{}{}
	}
}

// ProbeLog returns "start-N"/"end-N" markers in the order probes ran.
func (f *FakeService) ProbeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.probeLog))
	copy(out, f.probeLog)
	return out
}

// ProbesInFlight returns the number of probes currently being served.
func (f *FakeService) ProbesInFlight() int32 {
	return atomic.LoadInt32(&f.probeInFlight)
}

// MaxProbesInFlight returns the highest probe concurrency observed.
func (f *FakeService) MaxProbesInFlight() int32 {
	return atomic.LoadInt32(&f.maxProbeInFlight)
}

// begin records the call and reports a configured failure code, if any.
func (f *FakeService) begin(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	return f.failCodes[path]
}

func (f *FakeService) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if code := f.begin("/metrics"); code != 0 {
		http.Error(w, "metrics unavailable", code)
		return
	}

	f.mu.Lock()
	snap := f.snap
	snap.Timestamp = f.clock().Unix()
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (f *FakeService) handleProbe(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt64(&f.probeSeq, 1)
	cur := atomic.AddInt32(&f.probeInFlight, 1)
	defer atomic.AddInt32(&f.probeInFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxProbeInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxProbeInFlight, max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.probeLog = append(f.probeLog, "start-"+strconv.FormatInt(n, 10))
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	code := f.begin("/api")

	f.mu.Lock()
	f.probeLog = append(f.probeLog, "end-"+strconv.FormatInt(n, 10))
	if code == 0 {
		f.snap.Total++
		if f.snap.CurrentLevel < f.snap.Capacity {
			f.snap.CurrentLevel++
			f.snap.Allowed++
		} else {
			f.snap.Rejected++
			code = http.StatusTooManyRequests
		}
	}
	f.mu.Unlock()

	if code != 0 {
		http.Error(w, "Rate limit exceeded", code)
		return
	}
	_, _ = w.Write([]byte("Request processed"))
}

func (f *FakeService) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if code := f.begin("/config"); code != 0 {
		http.Error(w, "config rejected", code)
		return
	}

	capacity, err := strconv.Atoi(r.FormValue("capacity"))
	if err != nil {
		http.Error(w, "Invalid capacity value", http.StatusBadRequest)
		return
	}
	rate := r.FormValue("rate")
	if _, err := time.ParseDuration(rate); err != nil {
		http.Error(w, "Invalid rate value", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.config = model.Config{Capacity: capacity, Rate: rate}
	f.snap.Capacity = capacity
	f.snap.CurrentLevel = 0
	f.mu.Unlock()

	_, _ = w.Write([]byte("Configuration updated"))
}

func (f *FakeService) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if code := f.begin("/reset"); code != 0 {
		http.Error(w, "reset failed", code)
		return
	}

	f.mu.Lock()
	f.snap = f.snap.WithCountersReset()
	f.mu.Unlock()

	_, _ = w.Write([]byte("Statistics reset"))
}
