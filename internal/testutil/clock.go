package testutil

import "sync"

// ManualTime is a time source that only moves when told to. It satisfies
// engine.TimeSource, so tests and scenario replays control both operation
// timestamps and retention cutoffs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualTime struct {
	mu  sync.Mutex
	now int64
}

// NewManualTime returns a time source reading start.
func NewManualTime(start int64) *ManualTime {
	return &ManualTime{now: start}
}

// Now returns the current reading.
func (m *ManualTime) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set jumps to t. Going backwards is allowed; producers may lag.
func (m *ManualTime) Set(t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves forward by d and returns the new reading.
func (m *ManualTime) Advance(d int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
	return m.now
}
