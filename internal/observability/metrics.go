package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                  sync.Mutex
	requestCount        map[string]int64
	requestLatencyNanos map[string]int64
	errorCount          map[string]int64
	transitionAccepted  map[string]int64
	transitionRejected  map[string]int64
	versionConflicts    int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests            map[string]int64 `json:"requests"`
	AvgLatencyMillis    map[string]int64 `json:"avg_latency_ms"`
	Errors              map[string]int64 `json:"errors"`
	TransitionsAccepted map[string]int64 `json:"transitions_accepted"`
	TransitionsRejected map[string]int64 `json:"transitions_rejected"`
	VersionConflicts    int64            `json:"version_conflicts"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:        make(map[string]int64),
		requestLatencyNanos: make(map[string]int64),
		errorCount:          make(map[string]int64),
		transitionAccepted:  make(map[string]int64),
		transitionRejected:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatencyNanos[key] += duration.Nanoseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTransition counts a workflow decision for the from->to edge.
func (m *Metrics) RecordTransition(from, to string, accepted bool) {
	if m == nil {
		return
	}
	key := from + "->" + to
	m.mu.Lock()
	defer m.mu.Unlock()
	if accepted {
		m.transitionAccepted[key]++
	} else {
		m.transitionRejected[key]++
	}
}

// RecordConflict counts a rejected compare-and-swap write.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versionConflicts++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	latency := make(map[string]int64, len(m.requestCount))
	for key, count := range m.requestCount {
		if count > 0 {
			latency[key] = time.Duration(m.requestLatencyNanos[key] / count).Milliseconds()
		}
	}
	return Snapshot{
		Requests:            copyCounts(m.requestCount),
		AvgLatencyMillis:    latency,
		Errors:              copyCounts(m.errorCount),
		TransitionsAccepted: copyCounts(m.transitionAccepted),
		TransitionsRejected: copyCounts(m.transitionRejected),
		VersionConflicts:    m.versionConflicts,
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
