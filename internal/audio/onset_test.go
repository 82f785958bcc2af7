// SPDX-License-Identifier: MIT
package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func block(level float32, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		if i%2 == 0 {
			s[i] = level
		} else {
			s[i] = -level
		}
	}
	return s
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 0.5, RMS(block(0.5, 64)), 1e-9)
}

func TestOnsetDetector(t *testing.T) {
	d := NewOnsetDetector(0.1, 2, 1)

	steps := []struct {
		level float32
		want  bool
	}{
		{0.01, false}, // below threshold
		{0.5, true},   // jump
		{0.01, false}, // cooldown
		{0.01, false},
		{0.015, false}, // rise but below threshold
		{0.3, true},
		{0.4, false}, // cooldown
		{0.5, false}, // ratio 1.25 < 2
	}
	for i, s := range steps {
		_, got := d.Detect(block(s.level, 128))
		assert.Equal(t, s.want, got, "step %d", i)
	}
	assert.Equal(t, uint64(2), d.Onsets())
}

func TestOnsetDetectorDefaults(t *testing.T) {
	d := NewOnsetDetector(0, 0, -1)
	assert.Equal(t, DefaultOnsetThreshold, d.threshold)
	assert.Equal(t, DefaultOnsetRatio, d.ratio)
	assert.Equal(t, DefaultOnsetCooldown, d.cooldown)
}

func TestOnsetDetectorDoesNotAllocate(t *testing.T) {
	d := NewOnsetDetector(0.1, 2, 0)
	b := block(0.5, 1024)
	allocs := testing.AllocsPerRun(100, func() { d.Detect(b) })
	assert.Zero(t, allocs)
}
