// SPDX-License-Identifier: MIT
package device

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/gordonklaus/portaudio"

	"nowplaying/internal/audio"
	applog "nowplaying/internal/log"
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any PortAudio operation and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// paDevicesFunc is swapped in tests.
var paDevicesFunc = portaudio.Devices

// PortAudioEnumerator lists PortAudio devices as endpoints. A device with
// both input and output channels appears in both directions. IDs are
// "hostapi/name".
type PortAudioEnumerator struct{}

func paEndpoint(d *portaudio.DeviceInfo, dir audio.Direction) audio.Endpoint {
	host := ""
	if d.HostApi != nil {
		host = d.HostApi.Name
	}
	ch := d.MaxOutputChannels
	if dir == audio.Capture {
		ch = d.MaxInputChannels
	}
	return audio.Endpoint{
		ID:                host + "/" + d.Name,
		DisplayName:       d.Name,
		Direction:         dir,
		DefaultSampleRate: d.DefaultSampleRate,
		Channels:          ch,
	}
}

func hasDirection(d *portaudio.DeviceInfo, dir audio.Direction) bool {
	if dir == audio.Capture {
		return d.MaxInputChannels > 0
	}
	return d.MaxOutputChannels > 0
}

// Endpoints implements audio.Enumerator.
func (PortAudioEnumerator) Endpoints(dir audio.Direction) ([]audio.Endpoint, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	var out []audio.Endpoint
	for _, d := range devices {
		if hasDirection(d, dir) {
			out = append(out, paEndpoint(d, dir))
		}
	}
	return out, nil
}

// DefaultEndpoint implements audio.Enumerator.
func (PortAudioEnumerator) DefaultEndpoint(dir audio.Direction) (audio.Endpoint, error) {
	var (
		d   *portaudio.DeviceInfo
		err error
	)
	if dir == audio.Capture {
		d, err = portaudio.DefaultInputDevice()
	} else {
		d, err = portaudio.DefaultOutputDevice()
	}
	if err != nil {
		return audio.Endpoint{}, err
	}
	return paEndpoint(d, dir), nil
}

// findPortAudioInput returns the input device for ep, matching the
// PortAudio id first and the display name second.
func findPortAudioInput(ep audio.Endpoint) (*portaudio.DeviceInfo, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && paEndpoint(d, audio.Capture).ID == ep.ID {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && matchName(d.Name, ep.DisplayName) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoDevice, ep.DisplayName)
}

// PortAudioCapture is a float32 input stream.
type PortAudioCapture struct {
	cfg    audio.CaptureConfig
	device *portaudio.DeviceInfo

	mu     sync.Mutex
	stream *portaudio.Stream
	cb     audio.Callback
	closed bool
	log    *applog.Logger
}

// NewPortAudioCapture resolves the input device for cfg.Device.
func NewPortAudioCapture(cfg audio.CaptureConfig) (*PortAudioCapture, error) {
	d, err := findPortAudioInput(cfg.Device)
	if err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = d.DefaultSampleRate
	}
	return &PortAudioCapture{cfg: cfg, device: d, log: applog.Named("portaudio")}, nil
}

// Start opens the stream and begins delivering buffers to cb.
func (c *PortAudioCapture) Start(cb audio.Callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return fmt.Errorf("%w: already started", audio.ErrCaptureStream)
	}
	if c.closed {
		return fmt.Errorf("%w: closed", audio.ErrCaptureStream)
	}

	latency := c.device.DefaultHighInputLatency
	if c.cfg.LowLatency {
		latency = c.device.DefaultLowInputLatency
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: c.cfg.Channels,
			Device:   c.device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: c.cfg.FramesPerBuffer,
		SampleRate:      c.cfg.SampleRate,
	}

	c.cb = cb
	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %w", audio.ErrCaptureStream, c.device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: starting %q: %w", audio.ErrCaptureStream, c.device.Name, err)
	}
	c.stream = stream
	c.log.Infof("capturing %q: %d ch, %.0f Hz, %d frames", c.device.Name, c.cfg.Channels, c.cfg.SampleRate, c.cfg.FramesPerBuffer)
	return nil
}

// process is the stream callback.
func (c *PortAudioCapture) process(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c.cb(audio.CaptureBuffer{
		Samples:    in,
		Channels:   c.cfg.Channels,
		FrameCount: len(in) / c.cfg.Channels,
		SampleRate: c.cfg.SampleRate,
		Status:     statusFromPortAudio(flags),
	})
}

func statusFromPortAudio(f portaudio.StreamCallbackFlags) audio.StatusFlags {
	var s audio.StatusFlags
	if f&portaudio.InputUnderflow != 0 {
		s |= audio.InputUnderflow
	}
	if f&portaudio.InputOverflow != 0 {
		s |= audio.InputOverflow
	}
	if f&portaudio.OutputUnderflow != 0 {
		s |= audio.OutputUnderflow
	}
	if f&portaudio.OutputOverflow != 0 {
		s |= audio.OutputOverflow
	}
	if f&portaudio.PrimingOutput != 0 {
		s |= audio.PrimingOutput
	}
	return s
}

// Close stops and closes the stream. It is safe to call more than once.
func (c *PortAudioCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.stream == nil {
		return nil
	}
	stream := c.stream
	c.stream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

var (
	_ audio.Enumerator    = PortAudioEnumerator{}
	_ audio.CaptureSource = (*PortAudioCapture)(nil)
)
