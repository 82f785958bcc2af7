// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rms(buf []float64) float64 {
	var sum float64
	for _, v := range buf {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func TestMockTransportKeepsLastPayload(t *testing.T) {
	mt := &MockTransport{}
	_, n := mt.Last()
	assert.Zero(t, n)

	for i := range 3 {
		require.NoError(t, mt.Send(i))
	}
	last, n := mt.Last()
	assert.Equal(t, 2, last)
	assert.Equal(t, 3, n)
	assert.NoError(t, mt.Close())
}

func TestGenerateSineWaveLevel(t *testing.T) {
	// 441 Hz at 44.1 kHz repeats every 100 samples; 4400 is 44 whole cycles.
	buf := GenerateSineWave(4400, 44100, 441)
	require.Len(t, buf, 4400)
	assert.InDelta(t, 0.0, buf[0], 1e-12)
	assert.InDelta(t, 0.9, buf[25], 1e-9)
	assert.InDelta(t, buf[7], buf[107], 1e-9)
	assert.InDelta(t, 0.9/math.Sqrt2, rms(buf), 1e-6)
}

func TestGenerateComplexWaveBounded(t *testing.T) {
	for _, sr := range []float64{8000, 44100, 96000} {
		buf := GenerateComplexWave(2048, sr)
		require.Len(t, buf, 2048)
		for i, v := range buf {
			if math.Abs(v) > 0.9 {
				t.Fatalf("sr %v: sample %d = %f exceeds 0.9", sr, i, v)
			}
		}
		assert.Greater(t, rms(buf), 0.1, "sr %v", sr)
	}
}

func TestInterleavePadsShortChannel(t *testing.T) {
	assert.Equal(t, []float32{1, -1, 2, -2, 3, 0}, Interleave([]float64{1, 2, 3}, []float64{-1, -2}))
	assert.Equal(t, []float32{0, 5}, Interleave(nil, []float64{5}))
	assert.Empty(t, Interleave(nil, nil))
}

func TestFindPeakBin(t *testing.T) {
	mags := []float64{0.1, 0.4, 0.2, 0.9, 0.3, 0.8}
	tests := []struct {
		name       string
		mags       []float64
		start, end int
		want       int
	}{
		{"whole slice", mags, 0, 5, 3},
		{"upper half", mags, 4, 5, 5},
		{"clamped start", mags, -3, 2, 1},
		{"clamped end", mags, 4, 99, 5},
		{"empty", nil, 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindPeakBin(tt.mags, tt.start, tt.end))
		})
	}

	allocs := testing.AllocsPerRun(100, func() { FindPeakBin(mags, 0, len(mags)-1) })
	assert.Zero(t, allocs)
}

func BenchmarkGenerateSineWave(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		GenerateSineWave(1024, 44100, 440)
	}
}
