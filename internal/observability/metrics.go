package observability

import (
	"strconv"
	"sync"
	"time"
)

// SweepCounters aggregates outcomes for one named sweep job.
type SweepCounters struct {
	Runs    int64 `json:"runs"`
	Changed int64 `json:"changed"`
	Errors  int64 `json:"errors"`
}

// Metrics provides basic in-memory counters for requests and sweep jobs.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	sweepCount   map[string]*SweepCounters
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		sweepCount:   make(map[string]*SweepCounters),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
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

// RecordSweep accumulates the outcome of one sweep run.
func (m *Metrics) RecordSweep(job string, changed, errors int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counters, ok := m.sweepCount[job]
	if !ok {
		counters = &SweepCounters{}
		m.sweepCount[job] = counters
	}
	counters.Runs++
	counters.Changed += int64(changed)
	counters.Errors += int64(errors)
}

// SweepSnapshot returns a copy of the per-job sweep counters.
func (m *Metrics) SweepSnapshot() map[string]SweepCounters {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]SweepCounters, len(m.sweepCount))
	for job, counters := range m.sweepCount {
		snapshot[job] = *counters
	}
	return snapshot
}
