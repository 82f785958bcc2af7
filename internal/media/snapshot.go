// SPDX-License-Identifier: MIT
package media

import (
	"fmt"
	"strings"
	"time"
)

// Fallback values published when a metadata fetch omits a field.
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
)

// Metadata sources recorded in Snapshot.MetadataSource.
const (
	SourceNone    = ""
	SourceAdapter = "adapter"
	SourceSession = "session"
)

// Snapshot is one immutable "now playing" record. A published Snapshot is
// never modified; updates publish a copy.
//
// Each facet carries the ticket of the fetch that produced it. A facet is
// only replaced by a fetch with a higher ticket.
type Snapshot struct {
	// Metadata facet.
	Title             string
	Artists           []string
	Thumbnail         []byte
	MetadataFallback  bool // Title or Artists were filled in
	ThumbnailFallback bool // Thumbnail is the configured backup image
	MetadataSource    string
	MetadataVersion   uint64

	// Playback facet.
	Status          PlaybackStatus
	PlaybackVersion uint64

	// Timeline facet. SampledAt carries a monotonic clock reading.
	Position        time.Duration
	Duration        time.Duration
	SampledAt       time.Time
	TimelineVersion uint64
}

// ArtistLine joins the artists for display.
func (s *Snapshot) ArtistLine() string {
	return strings.Join(s.Artists, ", ")
}

// Elapsed extrapolates the position to now while playing, clamped to the
// track duration when one is known.
func (s *Snapshot) Elapsed(now time.Time) time.Duration {
	pos := s.Position
	if s.Status == StatusPlaying && !s.SampledAt.IsZero() {
		if d := now.Sub(s.SampledAt); d > 0 {
			pos += d
		}
	}
	return clampPosition(pos, s.Duration)
}

func clampPosition(pos, duration time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}

// Progress returns elapsed / duration in [0, 1], or 0 for unknown durations.
func Progress(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(clampPosition(elapsed, duration)) / float64(duration)
}

// FormatTimestamp renders d as mm:ss, with an h: prefix when d reaches an
// hour. Hours wrap at 24.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := (total / 3600) % 24
	m := (total / 60) % 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// WrapTitle breaks title into lines of at most width columns, on word
// boundaries where possible.
func WrapTitle(title string, width int) []string {
	if width <= 0 {
		return []string{title}
	}
	words := strings.Fields(title)
	if len(words) == 0 {
		return nil
	}
	var (
		lines []string
		line  []rune
	)
	flush := func() {
		if len(line) > 0 {
			lines = append(lines, string(line))
			line = line[:0]
		}
	}
	for _, w := range words {
		r := []rune(w)
		for len(r) > width {
			flush()
			lines = append(lines, string(r[:width]))
			r = r[width:]
		}
		switch {
		case len(line) == 0:
			line = append(line, r...)
		case len(line)+1+len(r) <= width:
			line = append(line, ' ')
			line = append(line, r...)
		default:
			flush()
			line = append(line, r...)
		}
	}
	flush()
	return lines
}
