// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Onset detection defaults.
const (
	DefaultOnsetThreshold = 0.05
	DefaultOnsetRatio     = 1.5
	DefaultOnsetCooldown  = 4
)

// OnsetDetector flags blocks whose RMS energy rises sharply over the
// previous block, a cheap stand-in for kick drum hits. Detect must be called
// from a single goroutine; Onsets may be read from any.
type OnsetDetector struct {
	threshold float64
	ratio     float64
	cooldown  int

	last float64
	hold int

	onsets atomic.Uint64
}

// NewOnsetDetector returns a detector that fires when a block's RMS is above
// threshold and more than ratio times the previous block's. After firing it
// stays quiet for cooldown blocks. Non-positive arguments select defaults.
func NewOnsetDetector(threshold, ratio float64, cooldown int) *OnsetDetector {
	if threshold <= 0 {
		threshold = DefaultOnsetThreshold
	}
	if ratio <= 1 {
		ratio = DefaultOnsetRatio
	}
	if cooldown < 0 {
		cooldown = DefaultOnsetCooldown
	}
	return &OnsetDetector{threshold: threshold, ratio: ratio, cooldown: cooldown}
}

// Detect returns the RMS of samples and whether the block is an onset.
func (d *OnsetDetector) Detect(samples []float32) (rms float64, onset bool) {
	rms = RMS(samples)
	prev := d.last
	d.last = rms

	if d.hold > 0 {
		d.hold--
		return rms, false
	}
	if rms > d.threshold && (prev == 0 || rms/prev > d.ratio) {
		d.hold = d.cooldown
		d.onsets.Add(1)
		return rms, true
	}
	return rms, false
}

// Onsets returns the number of onsets detected so far.
func (d *OnsetDetector) Onsets() uint64 { return d.onsets.Load() }

// RMS returns the root mean square of samples, full scale = 1.0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
