// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate reports whether a block is quiet enough to skip spectral work. It is
// safe to reconfigure from any goroutine while the audio thread reads it.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint64 // float64 bits, full scale = 1.0
}

// NewGate returns an enabled gate with the given threshold.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.Enable()
	return g
}

func (g *Gate) Enable()  { g.enabled.Store(true) }
func (g *Gate) Disable() { g.enabled.Store(false) }

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the gate threshold, clamped to 0.0-1.0 where
// 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = math.Max(0, math.Min(1, threshold))
	g.threshold.Store(math.Float64bits(threshold))
}

// Threshold returns the current threshold in 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return math.Float64frombits(g.threshold.Load())
}

// Closed reports whether every sample of samples stays below the threshold.
// A nil or disabled gate is always open.
func (g *Gate) Closed(samples []float32) bool {
	if g == nil || !g.enabled.Load() {
		return false
	}
	threshold := float32(g.Threshold())
	if threshold <= 0 {
		return false
	}
	return Peak(samples) < threshold
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		// Clearing the sign bit is abs without a branch.
		a := math.Float32frombits(math.Float32bits(s) &^ (1 << 31))
		if a > peak {
			peak = a
		}
	}
	return peak
}
