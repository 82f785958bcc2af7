// SPDX-License-Identifier: MIT
package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nowplaying/internal/audio"
	"nowplaying/internal/config"
	"nowplaying/internal/route"
)

type stubEnumerator struct {
	render, capture []audio.Endpoint
}

func (s stubEnumerator) Endpoints(dir audio.Direction) ([]audio.Endpoint, error) {
	if dir == audio.Capture {
		return s.capture, nil
	}
	return s.render, nil
}

func (s stubEnumerator) DefaultEndpoint(dir audio.Direction) (audio.Endpoint, error) {
	eps, _ := s.Endpoints(dir)
	if len(eps) == 0 {
		return audio.Endpoint{}, errors.New("none")
	}
	return eps[len(eps)-1], nil
}

func cableDirectory() *audio.Directory {
	return audio.NewDirectory(stubEnumerator{
		render: []audio.Endpoint{
			{ID: "r-cable", DisplayName: "CABLE-A Input", Direction: audio.Render},
			{ID: "r-spk", DisplayName: "Speakers", Direction: audio.Render, DefaultSampleRate: 48000},
		},
		capture: []audio.Endpoint{
			{ID: "c-cable", DisplayName: "CABLE-A Output", Direction: audio.Capture},
		},
	})
}

func TestWriteEndpoints(t *testing.T) {
	eps, err := cableDirectory().All()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeEndpoints(&buf, eps))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "DIRECTION")
	assert.Contains(t, lines[2], "48000")
	assert.Contains(t, lines[3], "capture")
}

func TestCheckResolved(t *testing.T) {
	dir := cableDirectory()
	mic, err := dir.Resolve("CABLE-A Output", audio.Capture)
	require.NoError(t, err)
	assert.NoError(t, checkResolved(dir, mic))

	err = checkResolved(dir, audio.Endpoint{ID: "gone", DisplayName: "USB Mic"})
	assert.ErrorContains(t, err, "disappeared")

	err = checkResolved(dir, audio.Endpoint{ID: "r-spk", DisplayName: "Headphones"})
	assert.ErrorContains(t, err, `"Speakers"`)
}

func dryRunConfig() *config.Config {
	cfg := config.Default()
	cfg.DryRun = true
	cfg.Media.Program = "no-such-program-on-this-host"
	return &cfg
}

func TestStartupDryRunResolvesEverything(t *testing.T) {
	a, err := startup(context.Background(), dryRunConfig(), cableDirectory())
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, "c-cable", a.mic.ID)
	assert.Equal(t, "r-cable", a.speakers.ID)
	assert.Equal(t, "r-spk", a.listen.ID, "default render endpoint")
	assert.NotZero(t, a.pid)
	require.NotNil(t, a.session)
	require.NotNil(t, a.out)
}

func TestStartupNamesUnresolvedDevice(t *testing.T) {
	cfg := dryRunConfig()
	cfg.Devices.CableSpeakers = "CABLE-Z"

	_, err := startup(context.Background(), cfg, cableDirectory())
	require.ErrorIs(t, err, audio.ErrEndpointNotFound)
	assert.Contains(t, err.Error(), "devices.cable_speakers")
	assert.Contains(t, err.Error(), "CABLE-Z")
}

func TestDryRunScopesUnwindOnError(t *testing.T) {
	a, err := startup(context.Background(), dryRunConfig(), cableDirectory())
	require.NoError(t, err)
	defer a.close()

	err = a.routes.WithListenThrough(a.mic.ID, a.listen.ID, func(*route.ListenThrough) error {
		return a.routes.WithRedirection(a.pid, a.speakers.ID, func(*route.Redirection) error {
			return a.withSubscription(func() error {
				snap := a.tracker.Snapshot()
				assert.Equal(t, "Dry Run", snap.Title)
				return errUserQuit
			})
		})
	})
	assert.ErrorIs(t, err, errUserQuit)
}
