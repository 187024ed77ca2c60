// Package system provides clock implementations for artifact timestamps.
package system

import "time"

// Clock implements circular.Clock using the wall clock.
type Clock struct {
	loc *time.Location
}

// New creates a Clock reporting UTC.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewIn creates a Clock reporting local time in loc. Archive folders and file
// timestamps follow this zone.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	if c == nil || c.loc == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.loc)
}

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.At
}
