// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "nowplaying/internal/log"
	"nowplaying/internal/spectrum"
	"nowplaying/pkg/bitint"
)

// PathEnv names the environment variable consulted when no path is given.
const PathEnv = "CONFIG_PATH"

var log = applog.Named("config")

// LoadConfig loads configuration from a YAML file at path. If path is empty,
// CONFIG_PATH and then ./config.yaml are tried; with no file the built-in
// defaults are used. Environment overrides are applied last and the result
// is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		log.Debugf("loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		fail("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.FrameInterval < MinFrameInterval {
		fail("frame_interval must be at least %s", MinFrameInterval)
	}

	if strings.TrimSpace(c.Media.Program) == "" {
		fail("media.program must be set")
	}
	if strings.TrimSpace(c.Devices.CableMic) == "" {
		fail("devices.cable_mic must be set")
	}
	if strings.TrimSpace(c.Devices.CableSpeakers) == "" {
		fail("devices.cable_speakers must be set")
	}

	switch strings.ToLower(c.Capture.Backend) {
	case "", "portaudio", "malgo", "miniaudio":
	default:
		fail("capture.backend %q is not portaudio or malgo", c.Capture.Backend)
	}
	if c.Capture.SampleRate < MinSampleRate || c.Capture.SampleRate > MaxSampleRate {
		fail("capture.sample_rate %.0f outside [%d, %d]", c.Capture.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Capture.FramesPerBuffer <= 0 || c.Capture.FramesPerBuffer > MaxBufferFrames {
		fail("capture.frames_per_buffer %d outside [1, %d]", c.Capture.FramesPerBuffer, MaxBufferFrames)
	}

	v := c.Visualizer
	if v.Width <= 0 || v.Height <= 0 {
		fail("visualizer width and height must be positive")
	}
	if v.ChunkSize <= 0 {
		fail("visualizer.chunk_size must be positive")
	}
	if v.Damping < 0 || v.Damping > 1 {
		fail("visualizer.damping must be within [0, 1]")
	}
	if v.Gain <= 0 {
		fail("visualizer.gain must be positive")
	}
	if v.GateThreshold < 0 || v.GateThreshold > 1 {
		fail("visualizer.gate_threshold must be within [0, 1]")
	}
	if v.OnsetThreshold < 0 || v.OnsetThreshold > 1 {
		fail("visualizer.onset_threshold must be within [0, 1]")
	}
	if _, err := spectrum.ParseWindowFunc(v.Window); err != nil {
		fail("visualizer.window: %v", err)
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			fail("recording.bit_depth %d is not 16, 24 or 32", c.Recording.BitDepth)
		}
	}

	t := c.Transport
	if t.LogEvery < 0 {
		fail("transport.log_every must not be negative")
	}
	if t.WSEnabled {
		if _, _, err := net.SplitHostPort(t.WSAddr); err != nil {
			fail("transport.ws_addr %q: %v", t.WSAddr, err)
		}
		if !strings.HasPrefix(t.WSPath, "/") {
			fail("transport.ws_path %q must start with /", t.WSPath)
		}
	}
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			fail("transport.udp_target_address %q: %v", t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			fail("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return errors.Join(errs...)
}

// Warnings reports settings that are valid but likely unintended.
func (c *Config) Warnings() []string {
	var w []string
	if !bitint.IsPowerOfTwo(c.Capture.FramesPerBuffer) {
		w = append(w, fmt.Sprintf("capture.frames_per_buffer %d is not a power of two; nearest is %d",
			c.Capture.FramesPerBuffer, bitint.NearestPowerOfTwo(c.Capture.FramesPerBuffer)))
	}
	if c.Devices.CableMic != "" && strings.EqualFold(c.Devices.CableMic, c.Devices.CableSpeakers) {
		w = append(w, "devices.cable_mic and devices.cable_speakers are the same fragment; the capture-side hint decides which endpoint each resolves to")
	}
	if c.Assets.BackupThumbnail != "" {
		if _, err := os.Stat(c.Assets.BackupThumbnail); err != nil {
			w = append(w, fmt.Sprintf("assets.backup_thumbnail: %v", err))
		}
	}
	return w
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	envString("ENV_LOG_LEVEL", &c.LogLevel)
	envBool("ENV_DEBUG", &c.Debug)
	envBool("ENV_DRY_RUN", &c.DryRun)

	envString("ENV_MEDIA_PROGRAM", &c.Media.Program)
	envString("ENV_CABLE_MIC", &c.Devices.CableMic)
	envString("ENV_CABLE_SPEAKERS", &c.Devices.CableSpeakers)
	envString("ENV_LISTEN_OUTPUT", &c.Devices.ListenOutput)
	envString("ENV_CAPTURE_BACKEND", &c.Capture.Backend)

	envBool("ENV_WS_ENABLED", &c.Transport.WSEnabled)
	envString("ENV_WS_ADDR", &c.Transport.WSAddr)

	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(name); ok {
		*dst = val
		log.Infof("overriding from %s: %q", name, val)
	}
}

func envBool(name string, dst *bool) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Warnf("ignoring %s=%q: %v", name, val, err)
		return
	}
	*dst = b
	log.Infof("overriding from %s: %v", name, b)
}

func envDuration(name string, dst *time.Duration) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warnf("ignoring %s=%q: %v", name, val, err)
		return
	}
	*dst = d
	log.Infof("overriding from %s: %s", name, d)
}
