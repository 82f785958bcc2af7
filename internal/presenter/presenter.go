// SPDX-License-Identifier: MIT

// Package presenter runs the presentation-side ticking task. Each tick it
// reads the newest media snapshot and visualizer geometry, advances the
// local playback clock and sends one Frame to the configured transports.
// It only ever reads published state, so it never blocks the producers.
package presenter

import (
	"context"
	"time"

	applog "nowplaying/internal/log"
	"nowplaying/internal/media"
	"nowplaying/internal/transport"
	"nowplaying/internal/visualizer"
)

// DefaultInterval is the frame interval used when none is configured.
const DefaultInterval = 33 * time.Millisecond

const sendErrorInterval = 5 * time.Second

// SnapshotSource is satisfied by *media.Tracker.
type SnapshotSource interface {
	Snapshot() *media.Snapshot
}

// GeometrySource is satisfied by *visualizer.Visualizer.
type GeometrySource interface {
	Latest(dst *visualizer.Geometry) bool
}

// Options configures a Presenter.
type Options struct {
	Interval   time.Duration
	TitleWidth int
	Now        func() time.Time
}

// Presenter assembles and publishes frames.
type Presenter struct {
	snaps SnapshotSource
	geo   GeometrySource
	out   transport.Transport
	opts  Options

	clock   Clock
	scratch visualizer.Geometry
	seq     uint64

	lastSendErr time.Time
	log         *applog.Logger
}

// New returns a Presenter. geo may be nil when no visualizer runs.
func New(snaps SnapshotSource, geo GeometrySource, out transport.Transport, opts Options) *Presenter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.TitleWidth <= 0 {
		opts.TitleWidth = TitleWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Presenter{
		snaps: snaps,
		geo:   geo,
		out:   out,
		opts:  opts,
		log:   applog.Named("presenter"),
	}
}

// Render assembles the frame for now. It is not safe for concurrent use.
func (p *Presenter) Render(now time.Time) Frame {
	snap := p.snaps.Snapshot()
	p.seq++
	f := Frame{Seq: p.seq}
	f.NowPlaying(snap, p.clock.Advance(snap, now), p.opts.TitleWidth)
	if p.geo != nil && p.geo.Latest(&p.scratch) {
		f.Spectrum(&p.scratch)
	}
	return f
}

// Tick renders one frame and sends it.
func (p *Presenter) Tick() {
	now := p.opts.Now()
	f := p.Render(now)
	if err := p.out.Send(f); err != nil && now.Sub(p.lastSendErr) >= sendErrorInterval {
		p.lastSendErr = now
		p.log.Warnf("sending frame %d: %v", f.Seq, err)
	}
}

// Run ticks until ctx is done. It returns nil on cancellation.
func (p *Presenter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	p.log.Debugf("presenting every %s", p.opts.Interval)
	p.Tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Tick()
		}
	}
}
