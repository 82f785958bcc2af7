// SPDX-License-Identifier: MIT

// Package utils holds synthetic signal generators and small helpers shared
// by tests across the module.
package utils

import (
	"math"
	"sync"
)

// MockTransport records what it is sent instead of transmitting it.
type MockTransport struct {
	mu    sync.Mutex
	last  any
	count int
}

// Send stores data for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = data
	m.count++
	return nil
}

// Close is a no-op.
func (m *MockTransport) Close() error { return nil }

// Last returns the most recent payload and the number of sends so far.
func (m *MockTransport) Last() (any, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.count
}

// GenerateComplexWave returns a 440 Hz tone with two harmonics, peaking just
// under full scale.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns a pure tone at 0.9 of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// Interleave packs two channels into one interleaved float32 stereo buffer.
// The shorter channel is zero-padded.
func Interleave(left, right []float64) []float32 {
	n := max(len(left), len(right))
	out := make([]float32, 2*n)
	for i := range n {
		if i < len(left) {
			out[2*i] = float32(left[i])
		}
		if i < len(right) {
			out[2*i+1] = float32(right[i])
		}
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
