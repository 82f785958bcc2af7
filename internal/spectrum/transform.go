// SPDX-License-Identifier: MIT

// Package spectrum computes the per-channel magnitude spectrum of a stereo
// capture block on a frequency axis that is shifted to be non-negative and
// sorted ascending.
package spectrum

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Frame is the spectrum of one stereo block. Frequencies is shared by both
// channels; index i of every slice refers to the same DFT bin.
type Frame struct {
	Frequencies []float64 // ascending, Frequencies[0] == 0
	Left        []float64
	Right       []float64
	SampleRate  float64
}

// Len returns the number of bins.
func (f *Frame) Len() int { return len(f.Frequencies) }

// Transformer owns the FFT plan and scratch buffers for one block size. The
// plan, axis and sort permutation are rebuilt whenever the block size or
// sample rate changes; otherwise TransformInto does not allocate.
type Transformer struct {
	window WindowFunc

	n          int
	sampleRate float64

	fft     *fourier.CmplxFFT
	coeffs  []float64 // window coefficients, nil for WindowNone
	in      []complex128
	out     []complex128
	axis    []float64 // shifted, sorted
	perm    []int     // perm[k] is the DFT bin shown at sorted position k
	scratch []float64
}

// NewTransformer returns a Transformer applying the given window before the
// DFT. WindowNone keeps the raw spectrum.
func NewTransformer(window WindowFunc) *Transformer {
	return &Transformer{window: window}
}

// Size returns the block size the workspace is currently built for.
func (t *Transformer) Size() int { return t.n }

func (t *Transformer) configure(n int, sampleRate float64) {
	if n == t.n && sampleRate == t.sampleRate {
		return
	}
	t.n = n
	t.sampleRate = sampleRate
	t.fft = fourier.NewCmplxFFT(n)
	t.in = make([]complex128, n)
	t.out = make([]complex128, n)
	t.scratch = make([]float64, n)
	t.coeffs = windowCoefficients(t.window, n)

	t.axis = make([]float64, n)
	FrequencyAxis(t.axis, sampleRate)
	t.perm = make([]int, n)
	floats.Argsort(t.axis, t.perm)
}

// TransformInto computes the spectrum of left/right into dst, growing dst's
// slices when needed. left and right must have equal length.
func (t *Transformer) TransformInto(dst *Frame, left, right []float64, sampleRate float64) error {
	n := len(left)
	if n != len(right) {
		return fmt.Errorf("spectrum: channel length mismatch (%d != %d)", len(left), len(right))
	}
	if n == 0 {
		return fmt.Errorf("spectrum: empty block")
	}
	if sampleRate <= 0 {
		return fmt.Errorf("spectrum: sample rate must be positive, got %f", sampleRate)
	}
	t.configure(n, sampleRate)

	dst.Frequencies = grow(dst.Frequencies, n)
	dst.Left = grow(dst.Left, n)
	dst.Right = grow(dst.Right, n)
	dst.SampleRate = sampleRate

	copy(dst.Frequencies, t.axis)
	t.magnitudes(dst.Left, left)
	t.magnitudes(dst.Right, right)
	return nil
}

// magnitudes writes |DFT(x)| in sorted-axis order into dst.
func (t *Transformer) magnitudes(dst, x []float64) {
	for i, v := range x {
		if t.coeffs != nil {
			v *= t.coeffs[i]
		}
		t.in[i] = complex(v, 0)
	}
	t.fft.Coefficients(t.out, t.in)
	for i, c := range t.out {
		t.scratch[i] = cmplx.Abs(c)
	}
	for k, bin := range t.perm {
		dst[k] = t.scratch[bin]
	}
}

// Transform is the allocating convenience form of Transformer.TransformInto
// with no window.
func Transform(left, right []float64, sampleRate float64) (Frame, error) {
	var f Frame
	err := NewTransformer(WindowNone).TransformInto(&f, left, right, sampleRate)
	return f, err
}

// FrequencyAxis fills dst with the DFT sample frequencies for a block of
// len(dst) samples, in bin order (0, positive, then negative), shifted so the
// smallest value is zero.
func FrequencyAxis(dst []float64, sampleRate float64) {
	n := len(dst)
	if n == 0 {
		return
	}
	step := sampleRate / float64(n)
	half := (n - 1) / 2
	for i := range dst {
		k := i
		if i > half {
			k = i - n
		}
		dst[i] = float64(k) * step
	}
	floats.AddConst(-floats.Min(dst), dst)
}

// BinFrequency returns the absolute frequency of DFT bin i.
func BinFrequency(i, n int, sampleRate float64) float64 {
	if i > (n-1)/2 {
		i -= n
	}
	return float64(i) * sampleRate / float64(n)
}

func grow(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
