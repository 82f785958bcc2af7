// SPDX-License-Identifier: MIT
package spectrum

import "math"

// Band is a named frequency range.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands covers the audible range in six bands.
var DefaultBands = []Band{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandLevels writes one level in [0, 1] per band into dst, which must have
// len(bands) elements. Both channels and both spectrum halves contribute;
// magnitudes are normalized by block length so levels do not depend on it.
// scale multiplies the RMS bin amplitude before clamping.
func BandLevels(dst []float64, f *Frame, bands []Band, scale float64) {
	n := f.Len()
	for i := range dst {
		dst[i] = 0
	}
	if n == 0 || len(dst) != len(bands) {
		return
	}

	// Sorted position k holds absolute frequency Frequencies[k] - offset.
	offset := float64(n/2) * f.SampleRate / float64(n)
	norm := 2.0 / float64(n)

	var counts [16]int
	var cnt []int
	if len(bands) <= len(counts) {
		cnt = counts[:len(bands)]
	} else {
		cnt = make([]int, len(bands))
	}

	for k := 0; k < n; k++ {
		freq := math.Abs(f.Frequencies[k] - offset)
		l := f.Left[k] * norm
		r := f.Right[k] * norm
		energy := (l*l + r*r) / 2
		for b, band := range bands {
			if freq >= band.LowHz && freq < band.HighHz {
				dst[b] += energy
				cnt[b]++
				break
			}
		}
	}

	for b := range dst {
		if cnt[b] == 0 {
			continue
		}
		dst[b] = math.Min(1.0, math.Sqrt(dst[b]/float64(cnt[b]))*scale)
	}
}
