// SPDX-License-Identifier: MIT

// Package config loads the YAML configuration, applies ENV_* overrides and
// validates the result. It is read once at startup.
package config

import "time"

// Defaults and limits.
const (
	DefaultLogLevel        = "info"
	DefaultMediaProgram    = "spotify"
	DefaultCableMic        = "CABLE-A Output"
	DefaultCableSpeakers   = "CABLE-A Input"
	DefaultFrameInterval   = 33 * time.Millisecond
	DefaultBackend         = "portaudio"
	DefaultSampleRate      = 48000
	DefaultFramesPerBuffer = 1024
	DefaultWidth           = 1920
	DefaultHeight          = 1080
	DefaultChunkSize       = 3
	DefaultDamping         = 0.9
	DefaultGain            = 2.0
	DefaultWindow          = "none"
	DefaultBitDepth        = 16
	DefaultWSAddr          = "127.0.0.1:8765"
	DefaultWSPath          = "/ws"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPInterval     = 33 * time.Millisecond

	MinSampleRate    = 8000
	MaxSampleRate    = 192000
	MaxBufferFrames  = 8192
	MinFrameInterval = time.Millisecond
)

// Config is the application configuration.
type Config struct {
	Debug         bool          `yaml:"debug"`
	LogLevel      string        `yaml:"log_level"`
	DryRun        bool          `yaml:"dry_run"`        // in-memory routing and media session
	FrameInterval time.Duration `yaml:"frame_interval"` // presenter tick

	Media      MediaConfig      `yaml:"media"`
	Devices    DevicesConfig    `yaml:"devices"`
	Assets     AssetsConfig     `yaml:"assets"`
	Capture    CaptureConfig    `yaml:"capture"`
	Visualizer VisualizerConfig `yaml:"visualizer"`
	Recording  RecordingConfig  `yaml:"recording"`
	Transport  TransportConfig  `yaml:"transport"`
}

// MediaConfig names the media program.
type MediaConfig struct {
	Program string `yaml:"program"`           // process name fragment
	Session string `yaml:"session,omitempty"` // session fragment, defaults to Program
}

// SessionFragment returns the fragment used to find the media session.
func (m MediaConfig) SessionFragment() string {
	if m.Session != "" {
		return m.Session
	}
	return m.Program
}

// DevicesConfig holds device display-name fragments.
type DevicesConfig struct {
	CableMic      string `yaml:"cable_mic"`      // capture side of the cable, also listened through
	CableSpeakers string `yaml:"cable_speakers"` // render side the media program is redirected to
	ListenOutput  string `yaml:"listen_output"`  // empty: default playback device
}

// AssetsConfig holds asset paths.
type AssetsConfig struct {
	BackupThumbnail string `yaml:"backup_thumbnail"`
	Background      string `yaml:"background"`
}

// CaptureConfig selects the capture backend and block shape.
type CaptureConfig struct {
	Backend         string  `yaml:"backend"` // portaudio or malgo
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	LowLatency      bool    `yaml:"low_latency"`
}

// VisualizerConfig shapes the spectrum geometry.
type VisualizerConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	ChunkSize      int     `yaml:"chunk_size"`
	Damping        float64 `yaml:"damping"`
	Gain           float64 `yaml:"gain"`
	Window         string  `yaml:"window"`
	GateThreshold  float64 `yaml:"gate_threshold"`  // 0 disables the silence gate
	OnsetThreshold float64 `yaml:"onset_threshold"` // 0 disables onset detection
}

// RecordingConfig controls the WAV recorder.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"`
}

// TransportConfig selects where frames go.
type TransportConfig struct {
	LogEvery int  `yaml:"log_every"` // 0 disables the logging transport
	TUI      bool `yaml:"tui"`

	WSEnabled bool   `yaml:"ws_enabled"`
	WSAddr    string `yaml:"ws_addr"`
	WSPath    string `yaml:"ws_path"`

	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:      DefaultLogLevel,
		FrameInterval: DefaultFrameInterval,
		Media:         MediaConfig{Program: DefaultMediaProgram},
		Devices: DevicesConfig{
			CableMic:      DefaultCableMic,
			CableSpeakers: DefaultCableSpeakers,
		},
		Capture: CaptureConfig{
			Backend:         DefaultBackend,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Visualizer: VisualizerConfig{
			Enabled:   true,
			Width:     DefaultWidth,
			Height:    DefaultHeight,
			ChunkSize: DefaultChunkSize,
			Damping:   DefaultDamping,
			Gain:      DefaultGain,
			Window:    DefaultWindow,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WSAddr:           DefaultWSAddr,
			WSPath:           DefaultWSPath,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPInterval,
		},
	}
}
