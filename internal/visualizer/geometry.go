// SPDX-License-Identifier: MIT

// Package visualizer turns stereo capture blocks into mirrored bar geometry:
// the left channel spans the left half of the display from its edge inwards,
// the right channel is its reflection on the right half.
package visualizer

import (
	"math"

	"nowplaying/internal/spectrum"
)

// Defaults for the display and bar shaping.
const (
	DefaultWidth     = 1920
	DefaultHeight    = 1080
	DefaultChunkSize = 3
	DefaultDamping   = 0.9
	DefaultGain      = 2.0

	// axisEpsilon bounds the axis normalization denominator away from zero.
	axisEpsilon = 1e-9
)

// Point is a display coordinate in pixels.
type Point struct {
	X, Y float64
}

// Segment is a line from A to B.
type Segment struct {
	A, B Point
}

// Bar is one chunk of one channel: a damped body and an undamped tip, both
// vertical and centred on the display's horizontal midline.
type Bar struct {
	X         float64
	Magnitude float64
	Body      Segment
	Tip       Segment
}

// Geometry is the renderable output for one capture block. Left and Right are
// in chunk index order. Levels holds one band level per spectrum.DefaultBands
// entry when produced by a Visualizer; RMS and Onset are set only when the
// Visualizer has an onset detector.
type Geometry struct {
	Left       []Bar
	Right      []Bar
	Levels     []float64
	RMS        float64
	Onset      bool
	Width      float64
	Height     float64
	FrameCount int
	Seq        uint64
}

// CopyTo copies g into dst, reusing dst's slices where possible.
func (g *Geometry) CopyTo(dst *Geometry) {
	dst.Left = append(dst.Left[:0], g.Left...)
	dst.Right = append(dst.Right[:0], g.Right...)
	dst.Levels = append(dst.Levels[:0], g.Levels...)
	dst.RMS = g.RMS
	dst.Onset = g.Onset
	dst.Width = g.Width
	dst.Height = g.Height
	dst.FrameCount = g.FrameCount
	dst.Seq = g.Seq
}

// Builder maps a spectrum frame onto display geometry.
type Builder struct {
	Width     float64
	Height    float64
	ChunkSize int
	Damping   float64
	Gain      float64

	leftX  []float64
	rightX []float64
}

// NewBuilder returns a Builder with the default shaping for a display of the
// given size.
func NewBuilder(width, height float64) *Builder {
	return &Builder{
		Width:     width,
		Height:    height,
		ChunkSize: DefaultChunkSize,
		Damping:   DefaultDamping,
		Gain:      DefaultGain,
	}
}

// Chunks returns the number of bars per channel for n bins.
func (b *Builder) Chunks(n int) int {
	cs := b.chunkSize()
	return (n + cs - 1) / cs
}

func (b *Builder) chunkSize() int {
	if b.ChunkSize < 1 {
		return 1
	}
	return b.ChunkSize
}

// Build writes the geometry of f into dst, reusing dst's slices.
func (b *Builder) Build(dst *Geometry, f *spectrum.Frame) {
	n := f.Len()
	dst.Width = b.Width
	dst.Height = b.Height
	dst.FrameCount = n
	if n == 0 {
		dst.Left = dst.Left[:0]
		dst.Right = dst.Right[:0]
		return
	}

	b.leftX = growFloats(b.leftX, n)
	b.rightX = growFloats(b.rightX, n)

	maxFreq := math.Max(f.Frequencies[n-1], axisEpsilon)
	half := b.Width / 2
	for i, freq := range f.Frequencies {
		x := freq / maxFreq * half
		b.leftX[i] = x
		b.rightX[i] = b.Width - x
	}

	chunks := b.Chunks(n)
	dst.Left = growBars(dst.Left, chunks)
	dst.Right = growBars(dst.Right, chunks)

	cs := b.chunkSize()
	for c := range chunks {
		lo := c * cs
		hi := min(lo+cs, n)
		dst.Left[c] = b.bar(mean(b.leftX[lo:hi]), mean(f.Left[lo:hi]))
		dst.Right[c] = b.bar(mean(b.rightX[lo:hi]), mean(f.Right[lo:hi]))
	}
}

func (b *Builder) bar(x, magnitude float64) Bar {
	mid := b.Height / 2
	tip := magnitude * b.Gain
	body := tip * b.Damping
	return Bar{
		X:         x,
		Magnitude: magnitude,
		Body:      Segment{A: Point{x, mid - body}, B: Point{x, mid + body}},
		Tip:       Segment{A: Point{x, mid - tip}, B: Point{x, mid + tip}},
	}
}

// FrequencyToX returns the left-half pixel position of an absolute frequency
// for a block of frameCount samples at sampleRate.
func (b *Builder) FrequencyToX(freq float64, frameCount int, sampleRate float64) float64 {
	if frameCount <= 0 || sampleRate <= 0 {
		return 0
	}
	step := sampleRate / float64(frameCount)
	offset := float64(frameCount/2) * step
	maxFreq := math.Max(float64(frameCount-1)*step, axisEpsilon)
	return (freq + offset) / maxFreq * (b.Width / 2)
}

func mean(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

func growFloats(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

func growBars(s []Bar, n int) []Bar {
	if cap(s) < n {
		return make([]Bar, n)
	}
	return s[:n]
}
