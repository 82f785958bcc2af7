// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nowplaying/internal/testutil"
	"nowplaying/pkg/utils"
)

type failingTransport struct{ err error }

func (f failingTransport) Send(any) error { return f.err }
func (f failingTransport) Close() error   { return f.err }

func TestMultiSendsToAllAndJoinsErrors(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	boom := errors.New("boom")
	m := Multi{a, failingTransport{boom}, b}

	err := m.Send("frame")
	assert.ErrorIs(t, err, boom)
	last, n := b.Last()
	assert.Equal(t, "frame", last)
	assert.Equal(t, 1, n)
	_, n = a.Last()
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, m.Close(), boom)
	assert.NoError(t, Multi{a, b}.Close())
}

func TestLoggingTransportCounts(t *testing.T) {
	lt := NewLoggingTransport(0)
	for range 5 {
		require.NoError(t, lt.Send(struct{ N int }{1}))
	}
	assert.Equal(t, uint64(5), lt.Count())
	assert.NoError(t, lt.Close())
}

type message struct {
	Title string  `json:"title"`
	Level float64 `json:"level"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWebSocketBroadcastsJSON(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	wst := NewWebSocketTransport("")
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()

	c1, c2 := dial(t, srv), dial(t, srv)
	defer c1.Close()
	defer c2.Close()
	require.Eventually(t, func() bool { return wst.Clients() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, wst.Send(message{Title: "Song", Level: 0.5}))
	for _, c := range []*websocket.Conn{c1, c2} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got message
		require.NoError(t, c.ReadJSON(&got))
		assert.Equal(t, message{Title: "Song", Level: 0.5}, got)
	}

	require.NoError(t, wst.Close())
	assert.ErrorIs(t, wst.Send(message{}), ErrClosed)
	assert.NoError(t, wst.Close())
	assert.Equal(t, 0, wst.Clients())
}

func TestWebSocketForgetsDisconnectedClients(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	wst := NewWebSocketTransport("/frames")
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/frames"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return wst.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return wst.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketListenAndServe(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	wst := NewWebSocketTransport("")
	require.NoError(t, wst.ListenAndServe("127.0.0.1:0"))
	assert.NoError(t, wst.Close())
}
