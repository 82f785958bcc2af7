// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"nowplaying/cmd"
	"nowplaying/internal/audio"
	"nowplaying/internal/config"
	"nowplaying/internal/device"
	applog "nowplaying/internal/log"
	"nowplaying/internal/presenter"
	"nowplaying/internal/route"
	"nowplaying/pkg/build"
)

// errUserQuit ends the concurrent phase when the terminal view is closed.
var errUserQuit = errors.New("quit from terminal view")

// main runs in three phases:
//
// 1. Startup (cold path): parse flags and config, resolve every device, the
// media program's process and its session. Nothing in the OS has been
// changed yet, so failures here exit directly.
//
// 2. Concurrent (hot path): inside nested scoped acquisitions (listen-through,
// then redirection, then the session subscription, then the capture stream)
// the capture callback feeds the visualizer while the presenter ticks.
//
// 3. Shutdown (cold path): on a signal the acquisitions unwind in reverse
// order, each restoring what it changed even when an inner step failed.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("build info incomplete: %v", err)
	}

	opts, cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}

	switch opts.Command {
	case cmd.CommandNone:
		return
	case cmd.CommandVersion:
		fmt.Println(build.Get())
		return
	}

	configureLogging(cfg)
	for _, w := range cfg.Warnings() {
		applog.Warnf("config: %s", w)
	}

	if err := run(opts, cfg); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}

func configureLogging(cfg *config.Config) {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

func run(opts *cmd.Options, cfg *config.Config) error {
	if err := device.Initialize(); err != nil {
		return err
	}
	defer device.Terminate()

	enum, closeEnum, err := newEnumerator()
	if err != nil {
		return err
	}
	defer closeEnum()
	dir := audio.NewDirectory(enum)

	if opts.Command == cmd.CommandList {
		return listEndpoints(dir, opts.TUI)
	}

	// ==================== STARTUP PHASE ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := startup(ctx, cfg, dir)
	if err != nil {
		return err
	}
	defer app.close()

	// ==================== CONCURRENT PHASE ====================

	err = app.routes.WithListenThrough(app.mic.ID, app.listen.ID, func(*route.ListenThrough) error {
		return app.routes.WithRedirection(app.pid, app.speakers.ID, func(*route.Redirection) error {
			return app.withSubscription(func() error {
				return app.withCapture(func() error {
					return app.serve(ctx)
				})
			})
		})
	})

	// ==================== SHUTDOWN PHASE ====================

	if errors.Is(err, errUserQuit) {
		err = nil
	}
	app.report()
	return err
}

// serve runs the concurrent tasks until ctx is cancelled or one fails.
func (a *app) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	p := presenter.New(a.tracker, a.vis, a.out, presenter.Options{Interval: a.cfg.FrameInterval})
	g.Go(func() error { return p.Run(gctx) })

	if a.udp != nil {
		a.udp.Start()
		defer a.udp.Stop()
	}

	if a.view != nil {
		g.Go(func() error {
			select {
			case <-a.view.Done():
				return errUserQuit
			case <-gctx.Done():
				return nil
			}
		})
	}

	applog.Infof("running; press Ctrl+C to stop and restore audio routing")
	return g.Wait()
}
