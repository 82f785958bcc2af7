// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnumerator struct {
	render, capture []Endpoint
	err             map[Direction]error
}

func (f *fakeEnumerator) Endpoints(dir Direction) ([]Endpoint, error) {
	if err := f.err[dir]; err != nil {
		return nil, err
	}
	if dir == Capture {
		return f.capture, nil
	}
	return f.render, nil
}

func (f *fakeEnumerator) DefaultEndpoint(dir Direction) (Endpoint, error) {
	eps, err := f.Endpoints(dir)
	if err != nil || len(eps) == 0 {
		return Endpoint{}, errors.New("no default")
	}
	return eps[0], nil
}

func cableDevices() *fakeEnumerator {
	return &fakeEnumerator{
		capture: []Endpoint{
			{ID: "cap-cable-a", DisplayName: "CABLE-A Input", Direction: Capture},
			{ID: "cap-mic", DisplayName: "Microphone (USB)", Direction: Capture},
		},
		render: []Endpoint{
			{ID: "ren-cable-a", DisplayName: "CABLE-A Output", Direction: Render},
			{ID: "ren-speakers", DisplayName: "Speakers", Direction: Render},
		},
	}
}

func TestResolveIDPrefersHintDirection(t *testing.T) {
	d := NewDirectory(cableDevices())

	id, ok := d.ResolveID("CABLE-A", Render)
	require.True(t, ok)
	assert.Equal(t, "ren-cable-a", id)

	id, ok = d.ResolveID("CABLE-A", Capture)
	require.True(t, ok)
	assert.Equal(t, "cap-cable-a", id)
}

func TestResolveIDFallsBackAndIgnoresCase(t *testing.T) {
	d := NewDirectory(cableDevices())

	id, ok := d.ResolveID("microphone", Render)
	require.True(t, ok)
	assert.Equal(t, "cap-mic", id)

	_, ok = d.ResolveID("HDMI", Render)
	assert.False(t, ok)

	_, ok = d.ResolveID("", Render)
	assert.False(t, ok)
}

func TestResolveIDFirstMatchWins(t *testing.T) {
	enum := &fakeEnumerator{render: []Endpoint{
		{ID: "one", DisplayName: "CABLE Input"},
		{ID: "two", DisplayName: "CABLE Input 2"},
	}}
	id, ok := NewDirectory(enum).ResolveID("cable input", Render)
	require.True(t, ok)
	assert.Equal(t, "one", id)
}

func TestResolveIDTreatsEnumerationErrorAsMissing(t *testing.T) {
	enum := cableDevices()
	enum.err = map[Direction]error{Render: errors.New("device busy")}
	d := NewDirectory(enum)

	id, ok := d.ResolveID("CABLE-A", Render)
	require.True(t, ok)
	assert.Equal(t, "cap-cable-a", id)

	_, err := d.All()
	assert.Error(t, err)
}

func TestResolveWrapsNotFound(t *testing.T) {
	d := NewDirectory(cableDevices())
	_, err := d.Resolve("CABLE-Z", Render)
	assert.ErrorIs(t, err, ErrEndpointNotFound)
	assert.Contains(t, err.Error(), "CABLE-Z")

	ep, err := d.Resolve("speak", Render)
	require.NoError(t, err)
	assert.Equal(t, "Speakers", ep.DisplayName)
}

func TestResolveName(t *testing.T) {
	d := NewDirectory(cableDevices())

	name, ok := d.ResolveName("cap-mic")
	require.True(t, ok)
	assert.Equal(t, "Microphone (USB)", name)

	_, ok = d.ResolveName("nope")
	assert.False(t, ok)
}

func TestDirectoryAllListsRenderFirst(t *testing.T) {
	all, err := NewDirectory(cableDevices()).All()
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, Render, all[0].Direction)
	assert.Equal(t, Capture, all[3].Direction)
}

func TestTeeAndSample(t *testing.T) {
	var calls []int
	cb := Tee(
		func(CaptureBuffer) { calls = append(calls, 1) },
		func(CaptureBuffer) { calls = append(calls, 2) },
	)
	buf := CaptureBuffer{Samples: []float32{1, 2, 3, 4}, Channels: 2, FrameCount: 2}
	cb(buf)
	assert.Equal(t, []int{1, 2}, calls)
	assert.Equal(t, float32(4), buf.Sample(1, 1))

	mono := CaptureBuffer{Samples: []float32{5, 6}, Channels: 1, FrameCount: 2}
	assert.Equal(t, float32(6), mono.Sample(1, 1))
	assert.Equal(t, "input underflow, input overflow", (InputUnderflow | InputOverflow).String())
}
