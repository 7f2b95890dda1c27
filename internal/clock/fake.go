package clock

import "time"

// FakeClock is a Clock pinned to a fixed instant. Quote and version
// timestamps in tests stay deterministic across runs.
type FakeClock struct {
	current time.Time
}

// NewFakeClock pins the clock at t, normalized to UTC like the system clock.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.current
}

// Advance moves the pinned instant forward by d. Not safe for concurrent
// use with Now.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
