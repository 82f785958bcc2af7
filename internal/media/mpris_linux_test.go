// SPDX-License-Identifier: MIT
//go:build linux

package media

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "nowplaying/internal/log"
	"nowplaying/internal/testutil"
)

const testOwner = ":1.42"

type handlerCounts struct {
	metadata, playback, timeline atomic.Int32
}

func (c *handlerCounts) handlers() Handlers {
	return Handlers{
		MetadataChanged: func() { c.metadata.Add(1) },
		PlaybackChanged: func() { c.playback.Add(1) },
		TimelineChanged: func() { c.timeline.Add(1) },
	}
}

func (c *handlerCounts) get() [3]int32 {
	return [3]int32{c.metadata.Load(), c.playback.Load(), c.timeline.Load()}
}

func propertiesChanged(iface string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Sender: testOwner,
		Path:   mprisPath,
		Name:   propertiesIface + ".PropertiesChanged",
		Body:   []any{iface, changed, []string{}},
	}
}

func TestSignalMapping(t *testing.T) {
	v := dbus.MakeVariant
	tests := []struct {
		name string
		sig  *dbus.Signal
		want [3]int32 // metadata, playback, timeline
	}{
		{"metadata also refreshes timeline", propertiesChanged(mprisPlayer, map[string]dbus.Variant{"Metadata": v(map[string]dbus.Variant{})}), [3]int32{1, 0, 1}},
		{"playback status", propertiesChanged(mprisPlayer, map[string]dbus.Variant{"PlaybackStatus": v("Paused")}), [3]int32{0, 1, 0}},
		{"both", propertiesChanged(mprisPlayer, map[string]dbus.Variant{"Metadata": v(map[string]dbus.Variant{}), "PlaybackStatus": v("Playing")}), [3]int32{1, 1, 1}},
		{"unrelated property", propertiesChanged(mprisPlayer, map[string]dbus.Variant{"Volume": v(0.5)}), [3]int32{}},
		{"other interface", propertiesChanged(mprisRootIface, map[string]dbus.Variant{"Metadata": v("x")}), [3]int32{}},
		{"short body", &dbus.Signal{Sender: testOwner, Path: mprisPath, Name: propertiesIface + ".PropertiesChanged", Body: []any{mprisPlayer}}, [3]int32{}},
		{"seeked", &dbus.Signal{Sender: testOwner, Path: mprisPath, Name: mprisPlayer + ".Seeked", Body: []any{int64(5e6)}}, [3]int32{0, 0, 1}},
		{"unknown member", &dbus.Signal{Sender: testOwner, Path: mprisPath, Name: mprisPlayer + ".Other"}, [3]int32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c handlerCounts
			sub := &mprisSubscription{s: &mprisSession{owner: testOwner}, h: c.handlers()}
			sub.handle(tt.sig)
			assert.Equal(t, tt.want, c.get())
		})
	}
}

func TestHandleToleratesMissingHandlers(t *testing.T) {
	sub := &mprisSubscription{s: &mprisSession{owner: testOwner}}
	assert.NotPanics(t, func() {
		sub.handle(propertiesChanged(mprisPlayer, map[string]dbus.Variant{
			"Metadata":       dbus.MakeVariant(map[string]dbus.Variant{}),
			"PlaybackStatus": dbus.MakeVariant("Playing"),
		}))
	})
}

func TestDispatchFiltersSenderAndPath(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	var c handlerCounts
	sub := &mprisSubscription{
		s:       &mprisSession{owner: testOwner},
		h:       c.handlers(),
		signals: make(chan *dbus.Signal),
		done:    make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.dispatch()

	seeked := func(sender string, path dbus.ObjectPath) *dbus.Signal {
		return &dbus.Signal{Sender: sender, Path: path, Name: mprisPlayer + ".Seeked"}
	}
	sub.signals <- seeked(":1.99", mprisPath)
	sub.signals <- seeked(testOwner, "/org/mpris/MediaPlayer2/other")
	sub.signals <- nil
	sub.signals <- seeked(testOwner, mprisPath)

	close(sub.done)
	sub.wg.Wait()
	assert.Equal(t, [3]int32{0, 0, 1}, c.get())
}

func TestMetadataFromMap(t *testing.T) {
	md, art := metadataFromMap(map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Song"),
		"xesam:artist": dbus.MakeVariant([]string{"A", "B"}),
		"mpris:artUrl": dbus.MakeVariant("file:///tmp/cover.png"),
	})
	assert.Equal(t, Metadata{Title: "Song", Artists: []string{"A", "B"}}, md)
	assert.Equal(t, "file:///tmp/cover.png", art)

	md, art = metadataFromMap(nil)
	assert.Equal(t, Metadata{}, md)
	assert.Empty(t, art)
}

func TestVariantConversions(t *testing.T) {
	v := dbus.MakeVariant
	assert.Equal(t, "x", variantString(v("x")))
	assert.Equal(t, "/track/1", variantString(v(dbus.ObjectPath("/track/1"))))
	assert.Empty(t, variantString(v(42)))
	assert.Empty(t, variantString(dbus.Variant{}))

	assert.Equal(t, []string{"a", "b"}, variantStrings(v([]string{"a", "b"})))
	assert.Equal(t, []string{"solo"}, variantStrings(v("solo")))
	assert.Nil(t, variantStrings(v(int32(1))))

	tests := []struct {
		in   dbus.Variant
		want time.Duration
	}{
		{v(int64(2_500_000)), 2500 * time.Millisecond},
		{v(uint64(1_000_000)), time.Second},
		{v(int32(1500)), 1500 * time.Microsecond},
		{v(uint32(20)), 20 * time.Microsecond},
		{v(float64(3e6)), 3 * time.Second},
		{v("nope"), 0},
		{dbus.Variant{}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, microseconds(tt.in), "%v", tt.in)
	}
}

func TestTimelineFrom(t *testing.T) {
	tl := timelineFrom(dbus.MakeVariant(int64(65e6)), map[string]dbus.Variant{
		"mpris:length": dbus.MakeVariant(uint64(130e6)),
	})
	assert.Equal(t, Timeline{Position: 65 * time.Second, Duration: 130 * time.Second}, tl)
}

func TestFetchArtFromFileIsCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	s := &mprisSession{log: applog.Named("mpris")}

	data, err := s.fetchArt(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, os.Remove(path))
	data, err = s.fetchArt(context.Background(), "file://"+path)
	require.NoError(t, err, "same URL is served from the cache")
	assert.Equal(t, []byte("png"), data)

	_, err = s.fetchArt(context.Background(), "ftp://host/cover.png")
	assert.Error(t, err)
}
