// SPDX-License-Identifier: MIT
package device

import (
	"errors"
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nowplaying/internal/audio"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", PortAudio, false},
		{"PortAudio", PortAudio, false},
		{" malgo ", Malgo, false},
		{"miniaudio", Malgo, false},
		{"jack", PortAudio, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
	assert.Equal(t, "malgo", Malgo.String())
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		device, display string
		want            bool
	}{
		{"CABLE-A Output (VB-Audio Cable A)", "CABLE-A Output (VB-Audio Cable A)", true},
		// MME truncates names to 31 characters.
		{"CABLE-A Output (VB-Audio Cable", "CABLE-A Output (VB-Audio Cable A)", true},
		{"cable-a output", "CABLE-A Output", true},
		{"Speakers", "CABLE-A Output", false},
		{"", "Speakers", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchName(tt.device, tt.display), "%q vs %q", tt.device, tt.display)
	}
}

func withDevices(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paDevicesFunc
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, err }
	t.Cleanup(func() { paDevicesFunc = orig })
}

func testDevices() []*portaudio.DeviceInfo {
	wasapi := &portaudio.HostApiInfo{Name: "Windows WASAPI"}
	return []*portaudio.DeviceInfo{
		{Name: "CABLE-A Output", MaxInputChannels: 2, DefaultSampleRate: 48000, HostApi: wasapi},
		{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000, HostApi: wasapi},
		{Name: "Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 44100, HostApi: wasapi},
	}
}

func TestPortAudioEnumeratorSplitsDirections(t *testing.T) {
	withDevices(t, testDevices(), nil)

	capture, err := PortAudioEnumerator{}.Endpoints(audio.Capture)
	require.NoError(t, err)
	require.Len(t, capture, 2)
	assert.Equal(t, "Windows WASAPI/CABLE-A Output", capture[0].ID)
	assert.Equal(t, 1, capture[1].Channels)

	render, err := PortAudioEnumerator{}.Endpoints(audio.Render)
	require.NoError(t, err)
	require.Len(t, render, 2)
	assert.Equal(t, "Speakers", render[0].DisplayName)
	assert.Equal(t, 2, render[1].Channels)
}

func TestPortAudioEnumeratorError(t *testing.T) {
	withDevices(t, nil, errors.New("not initialized"))
	_, err := PortAudioEnumerator{}.Endpoints(audio.Render)
	assert.Error(t, err)
}

func TestFindPortAudioInput(t *testing.T) {
	withDevices(t, testDevices(), nil)

	d, err := findPortAudioInput(audio.Endpoint{ID: "Windows WASAPI/Headset"})
	require.NoError(t, err)
	assert.Equal(t, "Headset", d.Name)

	// Endpoints from another enumerator are matched by name.
	d, err = findPortAudioInput(audio.Endpoint{ID: `\\?\SWD#MMDEVAPI#x`, DisplayName: "CABLE-A Output"})
	require.NoError(t, err)
	assert.Equal(t, "CABLE-A Output", d.Name)

	// Output-only devices cannot be captured from.
	_, err = findPortAudioInput(audio.Endpoint{DisplayName: "Speakers"})
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestOpenCaptureRejectsEmptyBlock(t *testing.T) {
	_, err := OpenCapture(PortAudio, audio.CaptureConfig{Channels: 2})
	assert.Error(t, err)
}

func TestStatusFromPortAudio(t *testing.T) {
	got := statusFromPortAudio(portaudio.InputOverflow | portaudio.InputUnderflow)
	assert.Equal(t, audio.InputOverflow|audio.InputUnderflow, got)
	assert.Zero(t, statusFromPortAudio(0))
}
