// SPDX-License-Identifier: MIT
//go:build linux

package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	applog "nowplaying/internal/log"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisPath       = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisRootIface  = "org.mpris.MediaPlayer2"
	mprisPlayer     = "org.mpris.MediaPlayer2.Player"
	propertiesIface = "org.freedesktop.DBus.Properties"

	// maxArtBytes caps thumbnails fetched from artUrl.
	maxArtBytes = 8 << 20
)

// MPRISFinder finds MPRIS players on the session bus.
type MPRISFinder struct {
	conn *dbus.Conn
	log  *applog.Logger
}

// NewMPRISFinder connects to the session bus.
func NewMPRISFinder() (*MPRISFinder, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	return &MPRISFinder{conn: conn, log: applog.Named("mpris")}, nil
}

// Close closes the bus connection.
func (f *MPRISFinder) Close() error {
	return f.conn.Close()
}

// FindSession returns the first player whose bus name or Identity contains
// fragment, case-insensitively.
func (f *MPRISFinder) FindSession(ctx context.Context, fragment string) (Session, error) {
	var names []string
	if err := f.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("listing bus names: %w", err)
	}
	frag := strings.ToLower(strings.TrimSpace(fragment))
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		match := strings.Contains(strings.ToLower(strings.TrimPrefix(name, mprisPrefix)), frag)
		if !match {
			var identity string
			obj := f.conn.Object(name, mprisPath)
			if err := getProperty(ctx, obj, mprisRootIface, "Identity", &identity); err == nil {
				match = strings.Contains(strings.ToLower(identity), frag)
			}
		}
		if !match {
			continue
		}

		var owner string
		if err := f.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner); err != nil {
			return nil, fmt.Errorf("resolving owner of %s: %w", name, err)
		}
		f.log.Infof("using player %s (%s)", name, owner)
		return &mprisSession{
			conn:  f.conn,
			name:  name,
			owner: owner,
			obj:   f.conn.Object(name, mprisPath),
			log:   f.log,
		}, nil
	}
	return nil, fmt.Errorf("%w: no MPRIS player matching %q", ErrSessionNotFound, fragment)
}

func getProperty(ctx context.Context, obj dbus.BusObject, iface, prop string, dst any) error {
	var v dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesIface+".Get", 0, iface, prop).Store(&v); err != nil {
		return err
	}
	return dbus.Store([]any{v.Value()}, dst)
}

type mprisSession struct {
	conn  *dbus.Conn
	name  string
	owner string
	obj   dbus.BusObject
	log   *applog.Logger

	artMu  sync.Mutex
	artURL string
	art    []byte
}

func (s *mprisSession) metadataMap(ctx context.Context) (map[string]dbus.Variant, error) {
	var md map[string]dbus.Variant
	if err := getProperty(ctx, s.obj, mprisPlayer, "Metadata", &md); err != nil {
		return nil, fmt.Errorf("%s metadata: %w", s.name, err)
	}
	return md, nil
}

func (s *mprisSession) Metadata(ctx context.Context) (Metadata, error) {
	md, err := s.metadataMap(ctx)
	if err != nil {
		return Metadata{}, err
	}
	out, artURL := metadataFromMap(md)
	if artURL != "" {
		art, err := s.fetchArt(ctx, artURL)
		if err != nil {
			s.log.Debugf("art %s: %v", artURL, err)
		}
		out.Thumbnail = art
	}
	return out, nil
}

func (s *mprisSession) PlaybackStatus(ctx context.Context) (PlaybackStatus, error) {
	var status string
	if err := getProperty(ctx, s.obj, mprisPlayer, "PlaybackStatus", &status); err != nil {
		return StatusUnknown, fmt.Errorf("%s playback status: %w", s.name, err)
	}
	return ParsePlaybackStatus(status), nil
}

func (s *mprisSession) Timeline(ctx context.Context) (Timeline, error) {
	var v dbus.Variant
	if err := s.obj.CallWithContext(ctx, propertiesIface+".Get", 0, mprisPlayer, "Position").Store(&v); err != nil {
		return Timeline{}, fmt.Errorf("%s position: %w", s.name, err)
	}
	md, err := s.metadataMap(ctx)
	if err != nil {
		return Timeline{}, err
	}
	return timelineFrom(v, md), nil
}

// metadataFromMap maps the xesam fields of an MPRIS metadata map and returns
// the art URL separately.
func metadataFromMap(md map[string]dbus.Variant) (Metadata, string) {
	return Metadata{
		Title:   variantString(md["xesam:title"]),
		Artists: variantStrings(md["xesam:artist"]),
	}, variantString(md["mpris:artUrl"])
}

func timelineFrom(position dbus.Variant, md map[string]dbus.Variant) Timeline {
	return Timeline{
		Position: microseconds(position),
		Duration: microseconds(md["mpris:length"]),
	}
}

// fetchArt loads file:// and http(s):// art, caching the last URL.
func (s *mprisSession) fetchArt(ctx context.Context, raw string) ([]byte, error) {
	s.artMu.Lock()
	defer s.artMu.Unlock()
	if raw == s.artURL {
		return s.art, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	var data []byte
	switch u.Scheme {
	case "file":
		data, err = os.ReadFile(u.Path)
	case "http", "https":
		data, err = httpGet(ctx, raw)
	default:
		return nil, fmt.Errorf("unsupported art scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	s.artURL, s.art = raw, data
	return data, nil
}

func httpGet(ctx context.Context, raw string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", raw, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArtBytes))
}

func (s *mprisSession) matchOptions() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchSender(s.owner),
			dbus.WithMatchObjectPath(mprisPath),
			dbus.WithMatchInterface(propertiesIface),
			dbus.WithMatchMember("PropertiesChanged"),
		},
		{
			dbus.WithMatchSender(s.owner),
			dbus.WithMatchObjectPath(mprisPath),
			dbus.WithMatchInterface(mprisPlayer),
			dbus.WithMatchMember("Seeked"),
		},
	}
}

func (s *mprisSession) Subscribe(h Handlers) (Subscription, error) {
	for _, opts := range s.matchOptions() {
		if err := s.conn.AddMatchSignal(opts...); err != nil {
			return nil, fmt.Errorf("subscribing to %s: %w", s.name, err)
		}
	}
	sub := &mprisSubscription{
		s:       s,
		h:       h,
		signals: make(chan *dbus.Signal, 32),
		done:    make(chan struct{}),
	}
	s.conn.Signal(sub.signals)
	sub.wg.Add(1)
	go sub.dispatch()
	return sub, nil
}

type mprisSubscription struct {
	s       *mprisSession
	h       Handlers
	signals chan *dbus.Signal
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func (m *mprisSubscription) dispatch() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case sig := <-m.signals:
			if m.accepts(sig) {
				m.handle(sig)
			}
		}
	}
}

// accepts drops signals from other players sharing the connection.
func (m *mprisSubscription) accepts(sig *dbus.Signal) bool {
	return sig != nil && sig.Sender == m.s.owner && sig.Path == mprisPath
}

func (m *mprisSubscription) handle(sig *dbus.Signal) {
	switch sig.Name {
	case mprisPlayer + ".Seeked":
		call(m.h.TimelineChanged)
	case propertiesIface + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}
		if iface, _ := sig.Body[0].(string); iface != mprisPlayer {
			return
		}
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		if _, ok := changed["Metadata"]; ok {
			call(m.h.MetadataChanged)
			// Track length lives in the metadata map.
			call(m.h.TimelineChanged)
		}
		if _, ok := changed["PlaybackStatus"]; ok {
			call(m.h.PlaybackChanged)
		}
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (m *mprisSubscription) Unsubscribe() error {
	var err error
	m.once.Do(func() {
		m.s.conn.RemoveSignal(m.signals)
		for _, opts := range m.s.matchOptions() {
			if rerr := m.s.conn.RemoveMatchSignal(opts...); rerr != nil && err == nil {
				err = rerr
			}
		}
		close(m.done)
		m.wg.Wait()
	})
	return err
}

func variantString(v dbus.Variant) string {
	switch s := v.Value().(type) {
	case string:
		return s
	case dbus.ObjectPath:
		return string(s)
	default:
		return ""
	}
}

func variantStrings(v dbus.Variant) []string {
	switch s := v.Value().(type) {
	case []string:
		return s
	case string:
		return []string{s}
	default:
		return nil
	}
}

// microseconds converts the integer MPRIS time types to a Duration.
func microseconds(v dbus.Variant) time.Duration {
	switch n := v.Value().(type) {
	case int64:
		return time.Duration(n) * time.Microsecond
	case uint64:
		return time.Duration(n) * time.Microsecond
	case int32:
		return time.Duration(n) * time.Microsecond
	case uint32:
		return time.Duration(n) * time.Microsecond
	case float64:
		return time.Duration(n * float64(time.Microsecond))
	default:
		return 0
	}
}

var _ Finder = (*MPRISFinder)(nil)
