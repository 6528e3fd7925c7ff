package mongo

import "time"

// RateCache turns monotonically increasing counters into per-second rates.
// One cache lives on each Server: it keeps the previous value of every named
// counter plus a single previous-check instant shared by all of them, and
// nothing else survives between polls.
type RateCache struct {
	prev      map[string]float64
	lastCheck time.Time
	span      time.Duration
}

func NewRateCache() *RateCache {
	return &RateCache{prev: make(map[string]float64)}
}

// Observe records the wall-clock instant of the current poll and computes the
// gap to the previous one. Call once per poll, before any Rate calls.
func (c *RateCache) Observe(now time.Time) {
	if !c.lastCheck.IsZero() {
		c.span = now.Sub(c.lastCheck)
	}
	c.lastCheck = now
}

// Rate stores value for next time and returns (value-previous)/elapsed. With
// no previous sample the rate is 0. A counter that moved backwards (process
// restart on the monitored server) yields a negative rate on purpose: hiding
// the reset would hide the restart.
func (c *RateCache) Rate(name string, value float64) float64 {
	old, seen := c.prev[name]
	c.prev[name] = value

	if !seen || c.span <= 0 {
		return 0
	}
	return (value - old) / c.span.Seconds()
}
