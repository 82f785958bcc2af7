// SPDX-License-Identifier: MIT
package media

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	applog "nowplaying/internal/log"
)

// fetchTimeout bounds each facet fetch made from a notification handler.
const fetchTimeout = 5 * time.Second

// Options configures a Tracker.
type Options struct {
	// Rich, when set, is asked for metadata before the session itself.
	Rich RichMetadataSource
	// BackupThumbnail is published when no thumbnail is available.
	BackupThumbnail []byte
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Tracker coalesces a Session's notifications into one Snapshot.
type Tracker struct {
	session Session
	rich    RichMetadataSource
	backup  []byte
	now     func() time.Time

	snap atomic.Pointer[Snapshot]

	metadataTicket atomic.Uint64
	playbackTicket atomic.Uint64
	timelineTicket atomic.Uint64

	changes chan struct{}
	log     *applog.Logger
}

// NewTracker returns a Tracker over session. Nothing is fetched until
// Refresh or a handler runs.
func NewTracker(session Session, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Tracker{
		session: session,
		rich:    opts.Rich,
		backup:  opts.BackupThumbnail,
		now:     opts.Now,
		changes: make(chan struct{}, 1),
		log:     applog.Named("media"),
	}
	t.snap.Store(&Snapshot{})
	return t
}

// Snapshot returns the current snapshot. It is never nil and must not be
// modified.
func (t *Tracker) Snapshot() *Snapshot {
	return t.snap.Load()
}

// Changes is signalled after every publication. Signals coalesce; a
// receiver must read Snapshot to get the latest state.
func (t *Tracker) Changes() <-chan struct{} {
	return t.changes
}

// Subscribe registers the tracker's handlers with the session.
func (t *Tracker) Subscribe() (Subscription, error) {
	return t.session.Subscribe(Handlers{
		MetadataChanged: t.HandleMetadataChanged,
		PlaybackChanged: t.HandlePlaybackChanged,
		TimelineChanged: t.HandleTimelineChanged,
	})
}

// Refresh fetches every facet, as after subscribing.
func (t *Tracker) Refresh() {
	t.HandleMetadataChanged()
	t.HandlePlaybackChanged()
	t.HandleTimelineChanged()
}

// publish applies update to a copy of the current snapshot unless the
// facet's version is already at or beyond ticket. It reports whether the
// copy was published and returns the snapshot it replaced.
func (t *Tracker) publish(ticket uint64, version func(*Snapshot) uint64, update func(*Snapshot)) (prev *Snapshot, ok bool) {
	for {
		old := t.snap.Load()
		if version(old) >= ticket {
			return old, false
		}
		next := *old
		update(&next)
		if t.snap.CompareAndSwap(old, &next) {
			select {
			case t.changes <- struct{}{}:
			default:
			}
			return old, true
		}
	}
}

// HandleMetadataChanged fetches and publishes the metadata facet.
func (t *Tracker) HandleMetadataChanged() {
	ticket := t.metadataTicket.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	md, source, err := t.fetchMetadata(ctx)
	if err != nil {
		t.log.Warnf("metadata fetch failed: %v", err)
		return
	}
	md, metaFallback, thumbFallback := t.withFallbacks(md)

	t.publish(ticket, func(s *Snapshot) uint64 { return s.MetadataVersion }, func(s *Snapshot) {
		s.Title = md.Title
		s.Artists = md.Artists
		s.Thumbnail = md.Thumbnail
		s.MetadataFallback = metaFallback
		s.ThumbnailFallback = thumbFallback
		s.MetadataSource = source
		s.MetadataVersion = ticket
	})
}

// fetchMetadata asks the rich source first and the session second. The
// fallback is decided per call.
func (t *Tracker) fetchMetadata(ctx context.Context) (Metadata, string, error) {
	if t.rich != nil {
		md, err := t.rich.CurrentSong(ctx)
		if err == nil {
			return md, SourceAdapter, nil
		}
		if !errors.Is(err, ErrNotAvailable) {
			t.log.Debugf("rich metadata source failed, using session metadata: %v", err)
		}
	}
	md, err := t.session.Metadata(ctx)
	if err != nil {
		return Metadata{}, SourceNone, err
	}
	return md, SourceSession, nil
}

func (t *Tracker) withFallbacks(md Metadata) (out Metadata, metaFallback, thumbFallback bool) {
	out.Title = strings.TrimSpace(md.Title)
	if out.Title == "" {
		out.Title = UnknownTitle
		metaFallback = true
	}
	for _, a := range md.Artists {
		if a = strings.TrimSpace(a); a != "" {
			out.Artists = append(out.Artists, a)
		}
	}
	if len(out.Artists) == 0 {
		out.Artists = []string{UnknownArtist}
		metaFallback = true
	}
	out.Thumbnail = md.Thumbnail
	if len(out.Thumbnail) == 0 {
		out.Thumbnail = t.backup
		thumbFallback = true
	}
	return out, metaFallback, thumbFallback
}

// HandlePlaybackChanged fetches and publishes the playback facet. A
// transition into Playing also forces a timeline read.
func (t *Tracker) HandlePlaybackChanged() {
	ticket := t.playbackTicket.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	status, err := t.session.PlaybackStatus(ctx)
	if err != nil {
		t.log.Warnf("playback status fetch failed: %v", err)
		return
	}

	prev, ok := t.publish(ticket, func(s *Snapshot) uint64 { return s.PlaybackVersion }, func(s *Snapshot) {
		s.Status = status
		s.PlaybackVersion = ticket
	})
	if !ok {
		return
	}
	if prev.Status != status {
		t.log.Debugf("playback %s -> %s", prev.Status, status)
	}
	if status == StatusPlaying && prev.Status != StatusPlaying {
		t.HandleTimelineChanged()
	}
}

// HandleTimelineChanged fetches and publishes the timeline facet.
func (t *Tracker) HandleTimelineChanged() {
	ticket := t.timelineTicket.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	tl, err := t.session.Timeline(ctx)
	if err != nil {
		t.log.Warnf("timeline fetch failed: %v", err)
		return
	}
	sampled := t.now()

	t.publish(ticket, func(s *Snapshot) uint64 { return s.TimelineVersion }, func(s *Snapshot) {
		s.Position = tl.Position
		s.Duration = tl.Duration
		s.SampledAt = sampled
		s.TimelineVersion = ticket
	})
}
