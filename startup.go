// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nowplaying/internal/audio"
	"nowplaying/internal/config"
	"nowplaying/internal/device"
	applog "nowplaying/internal/log"
	"nowplaying/internal/media"
	"nowplaying/internal/process"
	"nowplaying/internal/route"
	"nowplaying/internal/spectrum"
	"nowplaying/internal/transport"
	"nowplaying/internal/transport/udp"
	"nowplaying/internal/tui"
	"nowplaying/internal/visualizer"
)

var newEnumerator = device.NewSystemEnumerator

// app is everything resolved during startup. Only close and the scoped
// helpers touch OS state.
type app struct {
	cfg *config.Config

	mic      audio.Endpoint // cable capture side, captured and listened through
	speakers audio.Endpoint // cable render side the player is redirected to
	listen   audio.Endpoint // where listen-through plays
	backend  device.Backend
	pid      uint32

	routes  *route.Controller
	session media.Session
	tracker *media.Tracker
	vis     *visualizer.Visualizer

	out  transport.Transport
	udp  *udp.Publisher
	view *tui.NowPlayingView

	recorder *audio.Recorder
	closers  []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases everything startup acquired, in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			applog.Warnf("shutdown: %v", err)
		}
	}
}

// startup resolves devices, the media program and its session, and builds
// the pipeline. It changes nothing in the OS.
func startup(ctx context.Context, cfg *config.Config, dir *audio.Directory) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.mic, err = dir.Resolve(cfg.Devices.CableMic, audio.Capture); err != nil {
		return nil, fmt.Errorf("devices.cable_mic: %w", err)
	}
	if a.speakers, err = dir.Resolve(cfg.Devices.CableSpeakers, audio.Render); err != nil {
		return nil, fmt.Errorf("devices.cable_speakers: %w", err)
	}
	if cfg.Devices.ListenOutput != "" {
		a.listen, err = dir.Resolve(cfg.Devices.ListenOutput, audio.Render)
	} else {
		a.listen, err = dir.Default(audio.Render)
	}
	if err != nil {
		return nil, fmt.Errorf("devices.listen_output: %w", err)
	}
	for _, r := range []struct {
		key string
		ep  audio.Endpoint
	}{
		{"devices.cable_mic", a.mic},
		{"devices.cable_speakers", a.speakers},
		{"devices.listen_output", a.listen},
	} {
		if err := checkResolved(dir, r.ep); err != nil {
			applog.Warnf("%s: %v", r.key, err)
		}
	}
	applog.Infof("capture %q, redirect to %q, listen on %q", a.mic.DisplayName, a.speakers.DisplayName, a.listen.DisplayName)

	if a.backend, err = device.ParseBackend(cfg.Capture.Backend); err != nil {
		return nil, err
	}
	if err = a.openRoutes(); err != nil {
		return nil, err
	}
	if err = a.findProgram(ctx); err != nil {
		return nil, err
	}

	a.tracker = media.NewTracker(a.session, media.Options{BackupThumbnail: loadAsset(cfg.Assets.BackupThumbnail)})

	window, err := spectrum.ParseWindowFunc(cfg.Visualizer.Window)
	if err != nil {
		return nil, err
	}
	var gate *audio.Gate
	if cfg.Visualizer.GateThreshold > 0 {
		gate = audio.NewGate(cfg.Visualizer.GateThreshold)
	}
	var onset *audio.OnsetDetector
	if cfg.Visualizer.OnsetThreshold > 0 {
		onset = audio.NewOnsetDetector(cfg.Visualizer.OnsetThreshold, audio.DefaultOnsetRatio, audio.DefaultOnsetCooldown)
	}
	a.vis = visualizer.New(visualizer.Options{
		Width:     cfg.Visualizer.Width,
		Height:    cfg.Visualizer.Height,
		ChunkSize: cfg.Visualizer.ChunkSize,
		Damping:   cfg.Visualizer.Damping,
		Gain:      cfg.Visualizer.Gain,
		Window:    window,
		Gate:      gate,
		Onset:     onset,
	}, cfg.Capture.FramesPerBuffer)

	if err = a.openTransports(); err != nil {
		return nil, err
	}
	return a, nil
}

// checkResolved looks ep's id back up. A miss or a different name means two
// endpoints share an id or the device list changed during startup.
func checkResolved(dir *audio.Directory, ep audio.Endpoint) error {
	name, ok := dir.ResolveName(ep.ID)
	switch {
	case !ok:
		return fmt.Errorf("endpoint %s disappeared after resolution", ep.ID)
	case name != ep.DisplayName:
		return fmt.Errorf("id %s resolves back to %q, not %q", ep.ID, name, ep.DisplayName)
	}
	applog.Debugf("%s is %q", ep.ID, name)
	return nil
}

// openRoutes picks the routing backend. Platforms without per-process
// routing run with the in-memory backend so the rest still works.
func (a *app) openRoutes() error {
	if a.cfg.DryRun {
		applog.Infof("dry run: routing changes are simulated")
		a.routes = route.NewController(route.NewMemoryPolicy(), route.NewMemoryStores())
		return nil
	}
	policy, err := route.NewSystemPolicy()
	if errors.Is(err, route.ErrUnsupported) {
		applog.Warnf("%v; continuing without redirection or listen-through", err)
		a.routes = route.NewController(route.NewMemoryPolicy(), route.NewMemoryStores())
		return nil
	}
	if err != nil {
		return err
	}
	a.onClose(policy.Close)
	stores, err := route.NewSystemStores()
	if err != nil {
		return err
	}
	a.onClose(stores.Close)
	a.routes = route.NewController(policy, stores)
	return nil
}

// findProgram resolves the media program's pid and session.
func (a *app) findProgram(ctx context.Context) error {
	program := a.cfg.Media.Program
	fragment := a.cfg.Media.SessionFragment()

	pid, err := process.NewFinder().FindPID(ctx, program)
	switch {
	case err == nil:
		a.pid = pid
	case a.cfg.DryRun && errors.Is(err, process.ErrProcessNotFound):
		a.pid = uint32(os.Getpid())
		applog.Warnf("dry run: %v, using own pid %d", err, a.pid)
	default:
		return fmt.Errorf("media.program %q: %w", program, err)
	}

	var finder media.Finder
	if a.cfg.DryRun {
		finder = media.MemoryFinder{fragment: demoSession()}
	} else {
		mpris, err := media.NewMPRISFinder()
		if errors.Is(err, media.ErrUnsupported) {
			applog.Warnf("%v; now-playing shows placeholders", err)
			finder = media.MemoryFinder{fragment: media.NewMemorySession()}
		} else if err != nil {
			return err
		} else {
			a.onClose(mpris.Close)
			finder = mpris
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if a.session, err = finder.FindSession(ctx, fragment); err != nil {
		return fmt.Errorf("media session %q: %w", fragment, err)
	}
	return nil
}

func demoSession() *media.MemorySession {
	s := media.NewMemorySession()
	s.SetMetadata(media.Metadata{Title: "Dry Run", Artists: []string{"nowplaying"}})
	s.SetTimeline(media.Timeline{Duration: 3 * time.Minute})
	s.SetStatus(media.StatusPlaying)
	return s
}

func loadAsset(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		applog.Warnf("asset %s: %v", path, err)
		return nil
	}
	return data
}

// openTransports builds the frame transports and the UDP publisher.
func (a *app) openTransports() error {
	t := a.cfg.Transport
	var out transport.Multi

	if t.LogEvery > 0 {
		out = append(out, transport.NewLoggingTransport(t.LogEvery))
	}
	if t.WSEnabled {
		ws := transport.NewWebSocketTransport(t.WSPath)
		if err := ws.ListenAndServe(t.WSAddr); err != nil {
			ws.Close()
			return fmt.Errorf("transport.ws_addr: %w", err)
		}
		a.onClose(ws.Close)
		out = append(out, ws)
	}
	if t.UDPEnabled {
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			return err
		}
		a.onClose(sender.Close)
		if a.udp, err = udp.NewPublisher(t.UDPSendInterval, sender, a.vis); err != nil {
			return err
		}
	}
	if t.TUI {
		logPath := filepath.Join(os.TempDir(), "nowplaying.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		applog.SetOutput(f)
		a.onClose(func() error {
			applog.SetOutput(os.Stderr)
			return f.Close()
		})
		a.view = tui.NewNowPlayingView()
		a.onClose(a.view.Close)
		out = append(out, a.view)
	}

	if len(out) == 0 {
		out = append(out, transport.NewLoggingTransport(1))
	}
	a.out = out
	return nil
}

// withSubscription registers the tracker for the duration of fn and reads
// every facet once so the first frame is complete.
func (a *app) withSubscription(fn func() error) (err error) {
	sub, err := a.tracker.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribing to media session: %w", err)
	}
	defer func() {
		if uerr := sub.Unsubscribe(); uerr != nil {
			err = errors.Join(err, fmt.Errorf("unsubscribing from media session: %w", uerr))
		}
	}()
	a.tracker.Refresh()
	return fn()
}

// withCapture runs fn while the capture stream feeds the visualizer and, if
// enabled, the recorder. The stream closes before the recorder does.
func (a *app) withCapture(fn func() error) (err error) {
	cb := audio.Callback(a.vis.Process)
	if a.cfg.Recording.Enabled {
		rec, err := a.openRecorder()
		if err != nil {
			return err
		}
		defer func() {
			if rerr := rec.Close(); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}()
		cb = audio.Tee(a.vis.Process, rec.Process)
	}

	c := a.cfg.Capture
	src, err := device.OpenCapture(a.backend, audio.CaptureConfig{
		Device:          a.mic,
		Channels:        2,
		SampleRate:      c.SampleRate,
		FramesPerBuffer: c.FramesPerBuffer,
		LowLatency:      c.LowLatency,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", audio.ErrCaptureStream, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := src.Start(cb); err != nil {
		return fmt.Errorf("%w: %w", audio.ErrCaptureStream, err)
	}
	applog.Infof("capturing %q with %s", a.mic.DisplayName, a.backend)
	return fn()
}

func (a *app) openRecorder() (*audio.Recorder, error) {
	r := a.cfg.Recording
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(r.OutputDir, "nowplaying-"+time.Now().Format("20060102-150405")+".wav")
	rec, err := audio.NewRecorder(path, a.cfg.Capture.SampleRate, 2, a.cfg.Capture.FramesPerBuffer, r.BitDepth)
	if err != nil {
		return nil, err
	}
	a.recorder = rec
	applog.Infof("recording to %s", path)
	return rec, nil
}

// report logs run statistics at shutdown.
func (a *app) report() {
	applog.Infof("visualizer: %d blocks, %d handoffs skipped", a.vis.Processed(), a.vis.Dropped())
	if a.recorder != nil {
		applog.Infof("recorder: %d frames written, %d blocks dropped", a.recorder.Frames(), a.recorder.Dropped())
	}
}
