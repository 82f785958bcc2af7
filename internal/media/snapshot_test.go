// SPDX-License-Identifier: MIT
package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{9 * time.Second, "00:09"},
		{3*time.Minute + 7*time.Second + 900*time.Millisecond, "03:07"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{25*time.Hour + 5*time.Second, "1:00:05"},
		{24 * time.Hour, "00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.in))
		})
	}
}

func TestElapsedExtrapolatesOnlyWhilePlaying(t *testing.T) {
	sampled := time.Now()
	s := Snapshot{
		Status:    StatusPlaying,
		Position:  10 * time.Second,
		Duration:  time.Minute,
		SampledAt: sampled,
	}
	assert.Equal(t, 15*time.Second, s.Elapsed(sampled.Add(5*time.Second)))
	assert.Equal(t, time.Minute, s.Elapsed(sampled.Add(time.Hour)), "clamped to duration")
	assert.Equal(t, 10*time.Second, s.Elapsed(sampled.Add(-time.Second)), "clock before sample")

	s.Status = StatusPaused
	assert.Equal(t, 10*time.Second, s.Elapsed(sampled.Add(5*time.Second)))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Progress(time.Second, 0))
	assert.Equal(t, 0.5, Progress(30*time.Second, time.Minute))
	assert.Equal(t, 1.0, Progress(2*time.Minute, time.Minute))
}

func TestArtistLine(t *testing.T) {
	s := Snapshot{Artists: []string{"Daft Punk", "Pharrell Williams"}}
	assert.Equal(t, "Daft Punk, Pharrell Williams", s.ArtistLine())
}

func TestWrapTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		width int
		want  []string
	}{
		{"short", "Get Lucky", 30, []string{"Get Lucky"}},
		{"wraps on words", "Somewhere Over the Rainbow What a Wonderful World", 30,
			[]string{"Somewhere Over the Rainbow", "What a Wonderful World"}},
		{"splits long word", "Supercalifragilistic", 8, []string{"Supercal", "ifragili", "stic"}},
		{"empty", "   ", 30, nil},
		{"no width", "Anything goes", 0, []string{"Anything goes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapTitle(tt.title, tt.width)
			assert.Equal(t, tt.want, got)
			for _, line := range got {
				if tt.width > 0 {
					assert.LessOrEqual(t, len([]rune(line)), tt.width)
				}
			}
		})
	}
}

func TestParsePlaybackStatus(t *testing.T) {
	assert.Equal(t, StatusPlaying, ParsePlaybackStatus("Playing"))
	assert.Equal(t, StatusPaused, ParsePlaybackStatus("paused"))
	assert.Equal(t, StatusStopped, ParsePlaybackStatus("Stopped"))
	assert.Equal(t, StatusUnknown, ParsePlaybackStatus("Buffering"))
	assert.Equal(t, "Paused", StatusPaused.String())
}
