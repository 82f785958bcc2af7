// SPDX-License-Identifier: MIT

// Package device binds the audio package's Enumerator and CaptureSource
// boundaries to the host audio libraries: PortAudio (default), miniaudio
// through malgo, and on Windows the Core Audio endpoint enumerator.
package device

import (
	"errors"
	"fmt"
	"strings"

	"nowplaying/internal/audio"
)

// ErrNoDevice is returned when a capture backend cannot find the endpoint
// it was asked to open.
var ErrNoDevice = errors.New("no matching capture device")

// Backend selects the library that drives the capture stream.
type Backend int

const (
	PortAudio Backend = iota
	Malgo
)

func (b Backend) String() string {
	switch b {
	case Malgo:
		return "malgo"
	default:
		return "portaudio"
	}
}

// ParseBackend maps a config name to a Backend. Empty selects PortAudio.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "portaudio":
		return PortAudio, nil
	case "malgo", "miniaudio":
		return Malgo, nil
	default:
		return PortAudio, fmt.Errorf("unknown capture backend %q", name)
	}
}

// OpenCapture opens, but does not start, a capture stream on backend.
// PortAudio must already be initialized when backend is PortAudio.
func OpenCapture(backend Backend, cfg audio.CaptureConfig) (audio.CaptureSource, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", cfg.FramesPerBuffer)
	}
	switch backend {
	case Malgo:
		return NewMalgoCapture(cfg)
	default:
		return NewPortAudioCapture(cfg)
	}
}

// matchName reports whether a backend device name refers to the endpoint
// display name. Some host APIs truncate names, so either may be a prefix of
// the other.
func matchName(deviceName, displayName string) bool {
	a := strings.ToLower(strings.TrimSpace(deviceName))
	b := strings.ToLower(strings.TrimSpace(displayName))
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// NewSystemEnumerator returns the platform's endpoint enumerator: Core Audio
// where available, PortAudio otherwise. Call release when done.
func NewSystemEnumerator() (enum audio.Enumerator, release func() error, err error) {
	ca, err := NewCoreAudioEnumerator()
	switch {
	case err == nil:
		return ca, ca.Close, nil
	case errors.Is(err, errors.ErrUnsupported):
		return PortAudioEnumerator{}, func() error { return nil }, nil
	default:
		return nil, nil, err
	}
}
