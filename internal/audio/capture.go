// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"strings"
)

// ErrCaptureStream marks a failure of the capture stream itself.
var ErrCaptureStream = errors.New("capture stream error")

// StatusFlags reports stream conditions observed for one buffer.
type StatusFlags uint32

const (
	InputUnderflow StatusFlags = 1 << iota
	InputOverflow
	OutputUnderflow
	OutputOverflow
	PrimingOutput
)

func (s StatusFlags) String() string {
	if s == 0 {
		return "ok"
	}
	var parts []string
	for _, f := range []struct {
		flag StatusFlags
		name string
	}{
		{InputUnderflow, "input underflow"},
		{InputOverflow, "input overflow"},
		{OutputUnderflow, "output underflow"},
		{OutputOverflow, "output overflow"},
		{PrimingOutput, "priming output"},
	} {
		if s&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, ", ")
}

// CaptureBuffer is one block delivered by a CaptureSource. Samples is
// interleaved, Channels samples per frame. It is only valid for the duration
// of the callback; consumers copy what they need.
type CaptureBuffer struct {
	Samples    []float32
	Channels   int
	FrameCount int
	SampleRate float64
	Status     StatusFlags
}

// Sample returns channel ch of frame i; channels beyond Channels read
// as channel 0.
func (b *CaptureBuffer) Sample(i, ch int) float32 {
	if ch >= b.Channels {
		ch = 0
	}
	return b.Samples[i*b.Channels+ch]
}

// Callback consumes capture buffers on the audio thread. It must not block.
type Callback func(buf CaptureBuffer)

// Tee returns a Callback invoking each callback in order.
func Tee(cbs ...Callback) Callback {
	return func(buf CaptureBuffer) {
		for _, cb := range cbs {
			cb(buf)
		}
	}
}

// CaptureConfig selects the device and block shape of a capture stream.
type CaptureConfig struct {
	Device          Endpoint
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
}

// CaptureSource is an open capture stream.
type CaptureSource interface {
	// Start begins delivering buffers to cb on the audio thread.
	Start(cb Callback) error
	// Close stops delivery; no callback runs after Close returns.
	Close() error
}
