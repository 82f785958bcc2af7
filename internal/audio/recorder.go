// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "nowplaying/internal/log"
)

// recorderSlots is the number of blocks that can wait for the writer.
const recorderSlots = 32

// Recorder writes captured blocks to a WAV file. The audio thread only copies
// into a pre-allocated slot and hands it to a writer goroutine; when the
// writer falls behind, blocks are dropped rather than blocking capture.
type Recorder struct {
	path     string
	channels int
	bitDepth int

	file *os.File
	enc  *wav.Encoder
	ints *goaudio.IntBuffer

	free chan []float32
	full chan []float32
	done chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
	dropped   atomic.Uint64
	written   atomic.Uint64
	log       *applog.Logger
}

// NewRecorder creates path and starts the writer goroutine. Blocks larger
// than framesPerBuffer frames are truncated.
func NewRecorder(path string, sampleRate float64, channels, framesPerBuffer, bitDepth int) (*Recorder, error) {
	if channels <= 0 || framesPerBuffer <= 0 {
		return nil, fmt.Errorf("recorder: invalid block shape %d x %d", framesPerBuffer, channels)
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("recorder: unsupported bit depth %d", bitDepth)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	r := &Recorder{
		path:     path,
		channels: channels,
		bitDepth: bitDepth,
		file:     file,
		enc:      wav.NewEncoder(file, int(sampleRate), bitDepth, channels, 1),
		ints: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(sampleRate)},
			Data:           make([]int, framesPerBuffer*channels),
			SourceBitDepth: bitDepth,
		},
		free: make(chan []float32, recorderSlots),
		full: make(chan []float32, recorderSlots),
		done: make(chan struct{}),
		log:  applog.Named("recorder"),
	}
	for range recorderSlots {
		r.free <- make([]float32, framesPerBuffer*channels)
	}

	r.wg.Add(1)
	go r.writeLoop()
	r.log.Infof("recording to %s (%d ch, %.0f Hz, %d bit)", path, channels, sampleRate, bitDepth)
	return r, nil
}

// Process queues one block for writing. It never blocks.
func (r *Recorder) Process(buf CaptureBuffer) {
	var slot []float32
	select {
	case slot = <-r.free:
	default:
		r.dropped.Add(1)
		return
	}

	n := copy(slot[:cap(slot)], buf.Samples)
	// Mismatched channel layouts are written as silence rather than garbage.
	if buf.Channels != r.channels {
		clear(slot[:n])
	}
	slot = slot[:n]

	select {
	case r.full <- slot:
	default:
		r.dropped.Add(1)
		r.free <- slot[:cap(slot)]
	}
}

func (r *Recorder) writeLoop() {
	defer r.wg.Done()
	for {
		select {
		case slot := <-r.full:
			r.write(slot)
		case <-r.done:
			for {
				select {
				case slot := <-r.full:
					r.write(slot)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(slot []float32) {
	scale := float64(int64(1)<<(r.bitDepth-1) - 1)
	data := r.ints.Data[:len(slot)]
	for i, s := range slot {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(v * scale)
	}
	r.ints.Data = data
	if err := r.enc.Write(r.ints); err != nil {
		r.log.Errorf("writing %s: %v", r.path, err)
	} else {
		r.written.Add(uint64(len(slot) / r.channels))
	}
	r.ints.Data = r.ints.Data[:cap(r.ints.Data)]
	r.free <- slot[:cap(slot)]
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() uint64 { return r.written.Load() }

// Dropped returns the number of blocks dropped because the writer lagged.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close flushes queued blocks and finalizes the WAV header. The capture
// source feeding Process must be closed first.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.closeErr = errors.Join(r.enc.Close(), r.file.Close())
		if d := r.dropped.Load(); d > 0 {
			r.log.Warnf("%d blocks dropped while recording %s", d, r.path)
		}
		r.log.Infof("recording saved to %s (%d frames)", r.path, r.written.Load())
	})
	return r.closeErr
}
