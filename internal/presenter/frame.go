// SPDX-License-Identifier: MIT
package presenter

import (
	"math"
	"time"

	"nowplaying/internal/media"
	"nowplaying/internal/visualizer"
)

// TitleWidth is the column width titles are wrapped to.
const TitleWidth = 30

// BarFrame is one bar reduced to what a renderer draws: a position and the
// half-heights of the body and tip around the midline.
type BarFrame struct {
	X    float64 `json:"x"`
	Body float64 `json:"body"`
	Tip  float64 `json:"tip"`
}

// Frame is one presentation update.
type Frame struct {
	Seq uint64 `json:"seq"`

	TitleLines        []string `json:"titleLines"`
	Artists           string   `json:"artists"`
	Status            string   `json:"status"`
	MetadataFallback  bool     `json:"metadataFallback"`
	ThumbnailFallback bool     `json:"thumbnailFallback"`
	HasThumbnail      bool     `json:"hasThumbnail"`
	MetadataVersion   uint64   `json:"metadataVersion"`

	Position time.Duration `json:"-"`
	Elapsed  string        `json:"elapsed"`
	Duration string        `json:"duration"`
	Progress float64       `json:"progress"`

	Width  float64    `json:"width,omitempty"`
	Height float64    `json:"height,omitempty"`
	GeoSeq uint64     `json:"geoSeq,omitempty"`
	Levels []float64  `json:"levels,omitempty"`
	RMS    float64    `json:"rms,omitempty"`
	Onset  bool       `json:"onset,omitempty"`
	Left   []BarFrame `json:"left,omitempty"`
	Right  []BarFrame `json:"right,omitempty"`
}

// NowPlaying fills the media part of f from s.
func (f *Frame) NowPlaying(s *media.Snapshot, elapsed time.Duration, titleWidth int) {
	title := s.Title
	if title == "" {
		title = media.UnknownTitle
	}
	f.TitleLines = media.WrapTitle(title, titleWidth)
	f.Artists = s.ArtistLine()
	f.Status = s.Status.String()
	f.MetadataFallback = s.MetadataFallback
	f.ThumbnailFallback = s.ThumbnailFallback
	f.HasThumbnail = len(s.Thumbnail) > 0
	f.MetadataVersion = s.MetadataVersion
	f.Position = elapsed
	f.Elapsed = media.FormatTimestamp(elapsed)
	f.Duration = media.FormatTimestamp(s.Duration)
	f.Progress = media.Progress(elapsed, s.Duration)
}

// Spectrum fills the visualizer part of f from g.
func (f *Frame) Spectrum(g *visualizer.Geometry) {
	f.Width = g.Width
	f.Height = g.Height
	f.GeoSeq = g.Seq
	f.RMS = g.RMS
	f.Onset = g.Onset
	f.Levels = append([]float64(nil), g.Levels...)
	f.Left = bars(g.Left)
	f.Right = bars(g.Right)
}

func bars(in []visualizer.Bar) []BarFrame {
	out := make([]BarFrame, len(in))
	for i, b := range in {
		out[i] = BarFrame{
			X:    b.X,
			Body: math.Abs(b.Body.B.Y-b.Body.A.Y) / 2,
			Tip:  math.Abs(b.Tip.B.Y-b.Tip.A.Y) / 2,
		}
	}
	return out
}
