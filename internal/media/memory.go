// SPDX-License-Identifier: MIT
package media

import (
	"context"
	"strings"
	"sync"
)

// MemorySession is an in-process Session whose state is set directly.
// Setters notify subscribers synchronously on the calling goroutine. It
// backs tests and the dry-run mode.
type MemorySession struct {
	mu       sync.Mutex
	metadata Metadata
	status   PlaybackStatus
	timeline Timeline
	err      error
	subs     map[*memorySubscription]struct{}
	fetches  int
}

// NewMemorySession returns an empty, stopped session.
func NewMemorySession() *MemorySession {
	return &MemorySession{
		status: StatusStopped,
		subs:   make(map[*memorySubscription]struct{}),
	}
}

func (s *MemorySession) Metadata(ctx context.Context) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.metadata, s.fetchErr(ctx)
}

func (s *MemorySession) PlaybackStatus(ctx context.Context) (PlaybackStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.status, s.fetchErr(ctx)
}

func (s *MemorySession) Timeline(ctx context.Context) (Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.timeline, s.fetchErr(ctx)
}

func (s *MemorySession) fetchErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.err
}

// Fetches returns the number of facet fetches served.
func (s *MemorySession) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// FailFetches makes every fetch return err until called with nil.
func (s *MemorySession) FailFetches(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// SetMetadata replaces the metadata and fires MetadataChanged.
func (s *MemorySession) SetMetadata(md Metadata) {
	s.mu.Lock()
	s.metadata = md
	s.mu.Unlock()
	s.notify(func(h Handlers) func() { return h.MetadataChanged })
}

// SetStatus replaces the playback status and fires PlaybackChanged.
func (s *MemorySession) SetStatus(status PlaybackStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.notify(func(h Handlers) func() { return h.PlaybackChanged })
}

// SetTimeline replaces the timeline and fires TimelineChanged.
func (s *MemorySession) SetTimeline(tl Timeline) {
	s.mu.Lock()
	s.timeline = tl
	s.mu.Unlock()
	s.notify(func(h Handlers) func() { return h.TimelineChanged })
}

func (s *MemorySession) notify(pick func(Handlers) func()) {
	s.mu.Lock()
	var fns []func()
	for sub := range s.subs {
		if fn := pick(sub.h); fn != nil {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Subscribers returns the number of active subscriptions.
func (s *MemorySession) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemorySession) Subscribe(h Handlers) (Subscription, error) {
	sub := &memorySubscription{s: s, h: h}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	s *MemorySession
	h Handlers
}

func (m *memorySubscription) Unsubscribe() error {
	m.s.mu.Lock()
	delete(m.s.subs, m)
	m.s.mu.Unlock()
	return nil
}

// MemoryFinder serves fixed sessions keyed by program name.
type MemoryFinder map[string]Session

func (f MemoryFinder) FindSession(_ context.Context, fragment string) (Session, error) {
	frag := strings.ToLower(fragment)
	for name, s := range f {
		if strings.Contains(strings.ToLower(name), frag) {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

var (
	_ Session = (*MemorySession)(nil)
	_ Finder  = MemoryFinder(nil)
)
