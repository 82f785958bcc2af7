// SPDX-License-Identifier: MIT
package presenter

import (
	"time"

	"nowplaying/internal/media"
)

// Clock is the locally ticking playback position. It restarts from the
// snapshot's position whenever a new timeline is published and otherwise
// advances only while the snapshot says Playing.
type Clock struct {
	version uint64
	elapsed time.Duration
	last    time.Time
	started bool
}

// Advance moves the clock to now and returns the elapsed position.
func (c *Clock) Advance(s *media.Snapshot, now time.Time) time.Duration {
	switch {
	case !c.started || s.TimelineVersion != c.version:
		c.version = s.TimelineVersion
		c.elapsed = s.Elapsed(now)
		c.started = true
	case s.Status == media.StatusPlaying:
		if dt := now.Sub(c.last); dt > 0 {
			c.elapsed += dt
		}
	}
	c.last = now
	if s.Duration > 0 && c.elapsed > s.Duration {
		c.elapsed = s.Duration
	}
	return c.elapsed
}
