// SPDX-License-Identifier: MIT

/*
Package media tracks the "now playing" state of one media player session.

Three notification streams (metadata, playback status, timeline) arrive
independently and possibly concurrently. Each handler fetches only its own
facet and publishes a new immutable Snapshot with a compare-and-swap, so
readers never observe a half-updated record.
*/
package media

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrSessionNotFound is returned when no session matches the program
	// name fragment.
	ErrSessionNotFound = errors.New("media session not found")
	// ErrNotAvailable is returned by a RichMetadataSource that has nothing
	// for the current track.
	ErrNotAvailable = errors.New("metadata not available")
	// ErrUnsupported is returned by backends not built for this platform.
	ErrUnsupported = errors.New("media sessions unsupported on this platform")
)

// PlaybackStatus is the player state.
type PlaybackStatus int

const (
	StatusUnknown PlaybackStatus = iota
	StatusPlaying
	StatusPaused
	StatusStopped
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ParsePlaybackStatus maps a status name, case-insensitively, to a
// PlaybackStatus. Unknown names map to StatusUnknown.
func ParsePlaybackStatus(name string) PlaybackStatus {
	switch strings.ToLower(name) {
	case "playing":
		return StatusPlaying
	case "paused":
		return StatusPaused
	case "stopped":
		return StatusStopped
	default:
		return StatusUnknown
	}
}

// Metadata is the track facet as reported by a session or adapter.
type Metadata struct {
	Title     string
	Artists   []string
	Thumbnail []byte
}

// Timeline is the position facet.
type Timeline struct {
	Position time.Duration
	Duration time.Duration
}

// Handlers receive change notifications. They may be called concurrently,
// from any goroutine, in any order.
type Handlers struct {
	MetadataChanged func()
	PlaybackChanged func()
	TimelineChanged func()
}

// Subscription is an active registration of Handlers.
type Subscription interface {
	// Unsubscribe stops notifications. No handler starts after it returns.
	Unsubscribe() error
}

// Session is a media player's playback object.
type Session interface {
	Metadata(ctx context.Context) (Metadata, error)
	PlaybackStatus(ctx context.Context) (PlaybackStatus, error)
	Timeline(ctx context.Context) (Timeline, error)
	Subscribe(h Handlers) (Subscription, error)
}

// Finder locates the session of a program by name fragment.
type Finder interface {
	FindSession(ctx context.Context, fragment string) (Session, error)
}

// RichMetadataSource supplies richer track metadata than the OS session,
// typically from the player's own API. It returns ErrNotAvailable when it
// has nothing.
type RichMetadataSource interface {
	CurrentSong(ctx context.Context) (Metadata, error)
}
