package timeutil

import "time"

// Deadline is a time budget measured against a Clock. A Deadline built with a
// non-positive budget never expires.
type Deadline struct {
	clock Clock
	start time.Time
	limit time.Duration
}

// NewDeadline starts a budget of limit on clock.
func NewDeadline(clock Clock, limit time.Duration) Deadline {
	if clock == nil {
		clock = RealClock{}
	}
	return Deadline{clock: clock, start: clock.Now(), limit: limit}
}

// Expired reports whether more than the budget has elapsed.
func (d Deadline) Expired() bool {
	if d.limit <= 0 || d.clock == nil {
		return false
	}
	return d.clock.Since(d.start) > d.limit
}

// Elapsed returns the time used so far.
func (d Deadline) Elapsed() time.Duration {
	if d.clock == nil {
		return 0
	}
	return d.clock.Since(d.start)
}

// Remaining returns the time left, or zero once expired. Unbounded deadlines
// report a negative duration.
func (d Deadline) Remaining() time.Duration {
	if d.limit <= 0 {
		return -1
	}
	left := d.limit - d.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}
