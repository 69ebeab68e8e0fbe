package engine

import (
	"sync/atomic"
	"time"
)

// TimeSource supplies "now" in the same logical units as operation
// timestamps. Cleanup measures retention against it.
type TimeSource interface {
	Now() int64
}

// TimeFunc adapts a function to TimeSource.
type TimeFunc func() int64

// Now implements TimeSource.
func (f TimeFunc) Now() int64 { return f() }

// WallClock reports Unix milliseconds, the unit the default tolerance
// (100) and retention (300000, five minutes) are expressed in.
var WallClock TimeSource = TimeFunc(func() int64 {
	return time.Now().UnixMilli()
})

// Clock hands out the sequence numbers that order persisted history.
// Unlike timestamps, which come from producers and may tie or arrive out of
// order, seq values are strictly increasing.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt resumes a clock after start, e.g. when reopening a document
// whose stored history ends at start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments and returns the sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
