// SPDX-License-Identifier: MIT
package visualizer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"nowplaying/internal/audio"
	applog "nowplaying/internal/log"
	"nowplaying/internal/spectrum"
)

// statusLogInterval rate-limits stream status warnings from the audio thread.
const statusLogInterval = time.Second

// Options configures a Visualizer. Zero values select the defaults.
type Options struct {
	Width     float64
	Height    float64
	ChunkSize int
	Damping   float64
	Gain      float64
	Window    spectrum.WindowFunc
	// BandScale multiplies band levels before clamping; see spectrum.BandLevels.
	BandScale float64
	// Gate, when set and closed, publishes flat bars without running the FFT.
	Gate *audio.Gate
	// Onset, when set, marks blocks with a sharp energy rise.
	Onset *audio.OnsetDetector
}

func (o *Options) withDefaults() {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Damping <= 0 {
		o.Damping = DefaultDamping
	}
	if o.Gain <= 0 {
		o.Gain = DefaultGain
	}
	if o.BandScale <= 0 {
		o.BandScale = 50
	}
}

// Visualizer turns capture blocks into Geometry on the audio thread and
// publishes the latest result to any number of readers.
//
// OnCapture must only be called from one goroutine at a time (the capture
// callback). Latest may be called from any goroutine.
type Visualizer struct {
	transformer *spectrum.Transformer
	builder     *Builder
	gate        *audio.Gate
	onset       *audio.OnsetDetector
	bandScale   float64

	// Owned by the capture goroutine.
	left, right []float64
	frame       spectrum.Frame
	scratch     *Geometry
	seq         uint64
	lastStatus  time.Time

	mu     sync.Mutex
	latest *Geometry // guarded by mu
	ready  bool      // guarded by mu

	dropped   atomic.Uint64
	processed atomic.Uint64
	log       *applog.Logger
}

// New returns a Visualizer with buffers sized for framesPerBuffer frames.
// Larger blocks grow the buffers once.
func New(opts Options, framesPerBuffer int) *Visualizer {
	opts.withDefaults()
	b := NewBuilder(opts.Width, opts.Height)
	b.ChunkSize = opts.ChunkSize
	b.Damping = opts.Damping
	b.Gain = opts.Gain

	chunks := b.Chunks(framesPerBuffer)
	newGeometry := func() *Geometry {
		return &Geometry{
			Left:   make([]Bar, 0, chunks),
			Right:  make([]Bar, 0, chunks),
			Levels: make([]float64, len(spectrum.DefaultBands)),
		}
	}

	return &Visualizer{
		transformer: spectrum.NewTransformer(opts.Window),
		builder:     b,
		gate:        opts.Gate,
		onset:       opts.Onset,
		bandScale:   opts.BandScale,
		left:        make([]float64, framesPerBuffer),
		right:       make([]float64, framesPerBuffer),
		scratch:     newGeometry(),
		latest:      newGeometry(),
		log:         applog.Named("visualizer"),
	}
}

// Builder returns the geometry builder, for mapping frequencies to pixels.
func (v *Visualizer) Builder() *Builder { return v.builder }

// Process implements audio.Callback.
func (v *Visualizer) Process(buf audio.CaptureBuffer) {
	v.OnCapture(buf)
}

// OnCapture computes the geometry for buf and publishes it. The returned
// geometry is owned by the Visualizer and valid until the next call; nil is
// returned when the block could not be processed. buf is not retained.
//
// If a reader holds the published geometry at hand-off time, the new
// geometry is not published and the drop counter is incremented.
func (v *Visualizer) OnCapture(buf audio.CaptureBuffer) (g *Geometry) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Errorf("frame %d: recovered from panic: %v", v.seq, r)
			g = nil
		}
	}()

	if buf.Status != 0 {
		v.logStatus(buf.Status)
	}
	n := buf.FrameCount
	if n <= 0 || buf.Channels <= 0 || len(buf.Samples) < n*buf.Channels {
		return nil
	}
	if buf.SampleRate <= 0 {
		v.logError(fmt.Errorf("invalid sample rate %v", buf.SampleRate))
		return nil
	}

	if v.gate.Closed(buf.Samples[:n*buf.Channels]) && v.frame.Len() == n && v.frame.SampleRate == buf.SampleRate {
		clear(v.frame.Left)
		clear(v.frame.Right)
	} else {
		v.deinterleave(&buf)
		if err := v.transformer.TransformInto(&v.frame, v.left[:n], v.right[:n], buf.SampleRate); err != nil {
			v.logError(err)
			return nil
		}
	}

	v.seq++
	v.builder.Build(v.scratch, &v.frame)
	v.scratch.Seq = v.seq
	if len(v.scratch.Levels) != len(spectrum.DefaultBands) {
		v.scratch.Levels = make([]float64, len(spectrum.DefaultBands))
	}
	spectrum.BandLevels(v.scratch.Levels, &v.frame, spectrum.DefaultBands, v.bandScale)
	if v.onset != nil {
		v.scratch.RMS, v.scratch.Onset = v.onset.Detect(buf.Samples[:n*buf.Channels])
	}
	v.processed.Add(1)

	built := v.scratch
	if !v.mu.TryLock() {
		v.dropped.Add(1)
		return built
	}
	v.scratch, v.latest = v.latest, built
	v.ready = true
	v.mu.Unlock()
	return built
}

// deinterleave splits the first two channels of buf into v.left and v.right.
// Mono input is copied to both.
func (v *Visualizer) deinterleave(buf *audio.CaptureBuffer) {
	n := buf.FrameCount
	if cap(v.left) < n {
		v.left = make([]float64, n)
		v.right = make([]float64, n)
	}
	left, right := v.left[:n], v.right[:n]
	ch := buf.Channels
	for i := range n {
		left[i] = float64(buf.Samples[i*ch])
		if ch > 1 {
			right[i] = float64(buf.Samples[i*ch+1])
		} else {
			right[i] = left[i]
		}
	}
}

func (v *Visualizer) logStatus(s audio.StatusFlags) {
	now := time.Now()
	if now.Sub(v.lastStatus) < statusLogInterval {
		return
	}
	v.lastStatus = now
	v.log.Warnf("capture stream status: %s", s)
}

func (v *Visualizer) logError(err error) {
	now := time.Now()
	if now.Sub(v.lastStatus) < statusLogInterval {
		return
	}
	v.lastStatus = now
	v.log.Errorf("frame %d: %v", v.seq, err)
}

// Latest copies the most recently published geometry into dst. It returns
// false if nothing has been published yet.
func (v *Visualizer) Latest(dst *Geometry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.ready {
		return false
	}
	v.latest.CopyTo(dst)
	return true
}

// Dropped returns the number of frames not published because a reader held
// the hand-off lock.
func (v *Visualizer) Dropped() uint64 { return v.dropped.Load() }

// Processed returns the number of frames computed.
func (v *Visualizer) Processed() uint64 { return v.processed.Load() }
