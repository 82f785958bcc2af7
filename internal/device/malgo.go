// SPDX-License-Identifier: MIT
package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"

	"nowplaying/internal/audio"
	applog "nowplaying/internal/log"
)

// malgoBackend returns the native backend for the current OS.
func malgoBackend() malgo.Backend {
	switch runtime.GOOS {
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendAlsa
	}
}

// MalgoCapture is a float32 capture stream driven by miniaudio.
type MalgoCapture struct {
	cfg audio.CaptureConfig

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	info    malgo.DeviceInfo
	cb      audio.Callback
	samples []float32
	closed  bool
	log     *applog.Logger
}

// NewMalgoCapture initializes a miniaudio context and finds the capture
// device whose name matches cfg.Device.
func NewMalgoCapture(cfg audio.CaptureConfig) (*MalgoCapture, error) {
	ctx, err := malgo.InitContext([]malgo.Backend{malgoBackend()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %w", audio.ErrCaptureStream, err)
	}

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: listing devices: %w", audio.ErrCaptureStream, err)
	}

	c := &MalgoCapture{
		cfg:     cfg,
		ctx:     ctx,
		samples: make([]float32, cfg.FramesPerBuffer*cfg.Channels),
		log:     applog.Named("malgo"),
	}
	found := false
	for _, d := range devices {
		if matchName(d.Name(), cfg.Device.DisplayName) {
			c.info = d
			found = true
			break
		}
	}
	if !found {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: %q", ErrNoDevice, cfg.Device.DisplayName)
	}
	return c, nil
}

// Start initializes and starts the device.
func (c *MalgoCapture) Start(cb audio.Callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: closed", audio.ErrCaptureStream)
	}
	if c.device != nil {
		return fmt.Errorf("%w: already started", audio.ErrCaptureStream)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(c.cfg.Channels)
	deviceConfig.Capture.DeviceID = c.info.ID.Pointer()
	deviceConfig.PeriodSizeInFrames = uint32(c.cfg.FramesPerBuffer)
	if c.cfg.SampleRate > 0 {
		deviceConfig.SampleRate = uint32(c.cfg.SampleRate)
	}
	deviceConfig.Alsa.NoMMap = 1

	c.cb = cb
	callbacks := malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: func() { c.log.Debugf("device %q stopped", c.info.Name()) },
	}
	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("%w: init device %q: %w", audio.ErrCaptureStream, c.info.Name(), err)
	}
	if c.cfg.SampleRate <= 0 {
		c.cfg.SampleRate = float64(device.SampleRate())
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: start device %q: %w", audio.ErrCaptureStream, c.info.Name(), err)
	}
	c.device = device
	c.log.Infof("capturing %q: %d ch, %.0f Hz, %d frames", c.info.Name(), c.cfg.Channels, c.cfg.SampleRate, c.cfg.FramesPerBuffer)
	return nil
}

// onData converts the little-endian float32 bytes into the reusable sample
// buffer. Oversized periods are delivered in FramesPerBuffer pieces.
func (c *MalgoCapture) onData(_, in []byte, frameCount uint32) {
	ch := c.cfg.Channels
	stride := ch * 4
	frames := int(frameCount)
	if n := len(in) / stride; n < frames {
		frames = n
	}
	for start := 0; start < frames; start += c.cfg.FramesPerBuffer {
		n := min(c.cfg.FramesPerBuffer, frames-start)
		chunk := in[start*stride : (start+n)*stride]
		out := c.samples[:n*ch]
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[i*4:]))
		}
		c.cb(audio.CaptureBuffer{
			Samples:    out,
			Channels:   ch,
			FrameCount: n,
			SampleRate: c.cfg.SampleRate,
		})
	}
}

// Close stops the device and releases the context. It is safe to call more
// than once.
func (c *MalgoCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.device != nil {
		err = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.ctx != nil {
		if uerr := c.ctx.Uninit(); err == nil {
			err = uerr
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return err
}

var _ audio.CaptureSource = (*MalgoCapture)(nil)
