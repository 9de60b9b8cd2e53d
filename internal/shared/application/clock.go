package application

import "time"

// Clock supplies the current instant. Application services never call
// time.Now directly so that reconciliation can be driven deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC, truncated to microseconds so an
// instant survives a round trip through PostgreSQL unchanged.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// FixedClock always returns the same instant. Advance moves it.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c *FixedClock) Now() time.Time { return c.At }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }
