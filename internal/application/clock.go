package application

import "time"

// Clock is the time source for session and report timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC so stored sessions and ledger rows
// compare the same regardless of the host zone.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
