package contextutils

import (
	"sync"
	"time"
)

// DayLayout is the format of every date key in the engine.
const DayLayout = "2006-01-02"

// Clock supplies the current instant. All "today" computations go through it
// so tests can pin the day without touching process state.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant until Set is called.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock returns a clock pinned at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now returns the pinned instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Day resolves calendar days in a single fixed location.
type Day struct {
	clock Clock
	loc   *time.Location
}

// NewDay builds a Day helper. A nil location means UTC and a nil clock means SystemClock.
func NewDay(clock Clock, loc *time.Location) *Day {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Day{clock: clock, loc: loc}
}

// Location returns the configured day location.
func (d *Day) Location() *time.Location { return d.loc }

// Now returns the current instant in the day location.
func (d *Day) Now() time.Time { return d.clock.Now().In(d.loc) }

// Today returns today's date key.
func (d *Day) Today() string { return d.Now().Format(DayLayout) }

// Tomorrow returns tomorrow's date key.
func (d *Day) Tomorrow() string { return d.Offset(1) }

// Offset returns the date key n days from today (negative n looks back).
func (d *Day) Offset(n int) string {
	now := d.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)
	return midnight.AddDate(0, 0, n).Format(DayLayout)
}

// LookbackRange returns the inclusive [start, end] date keys covering the last
// `days` calendar days ending today. days <= 0 is treated as 1.
func (d *Day) LookbackRange(days int) (string, string) {
	if days <= 0 {
		days = 1
	}
	return d.Offset(-(days - 1)), d.Today()
}

// ParseDay validates a YYYY-MM-DD key in the given location.
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, WrapError(err, "invalid date format")
	}
	return t, nil
}
