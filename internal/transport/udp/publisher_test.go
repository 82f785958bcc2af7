// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nowplaying/internal/testutil"
	"nowplaying/internal/visualizer"
)

type stubSource struct {
	mu  sync.Mutex
	geo visualizer.Geometry
	ok  bool
}

func (s *stubSource) set(seq uint64, left, right []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok = true
	s.geo = visualizer.Geometry{Seq: seq}
	for _, m := range left {
		s.geo.Left = append(s.geo.Left, visualizer.Bar{Magnitude: m})
	}
	for _, m := range right {
		s.geo.Right = append(s.geo.Right, visualizer.Bar{Magnitude: m})
	}
}

func (s *stubSource) Latest(dst *visualizer.Geometry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ok {
		s.geo.CopyTo(dst)
	}
	return s.ok
}

func listen(t *testing.T) (*net.UDPConn, *Sender) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	sender, err := NewSender(conn.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { sender.Close() })
	return conn, sender
}

func read(t *testing.T, conn *net.UDPConn) Packet {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	pkt, err := Decode(buf[:n])
	require.NoError(t, err)
	return pkt
}

func TestPublisherEncodesLeftThenRight(t *testing.T) {
	_, sender := listen(t)
	src := &stubSource{}
	src.set(3, []float64{0.25, 0.5, 0.75}, []float64{1, 2, 3})
	p, err := NewPublisher(time.Millisecond, sender, src)
	require.NoError(t, err)
	at := time.Unix(1700000000, 42)

	require.True(t, src.Latest(&p.geo))
	pkt, err := Decode(p.encode(9, at))
	require.NoError(t, err)
	assert.Equal(t, uint32(9), pkt.Seq)
	assert.True(t, at.Equal(pkt.Timestamp))
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 1, 2, 3}, pkt.Magnitudes)
}

func TestPublisherSendsOnlyNewGeometry(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	conn, sender := listen(t)
	src := &stubSource{}
	p, err := NewPublisher(2*time.Millisecond, sender, src)
	require.NoError(t, err)

	p.Start()
	p.Start()
	src.set(1, []float64{0.1}, []float64{0.2})
	first := read(t, conn)
	assert.Equal(t, uint32(1), first.Seq)
	assert.Equal(t, []float32{0.1, 0.2}, first.Magnitudes)

	src.set(2, []float64{0.3}, []float64{0.4})
	second := read(t, conn)
	assert.Equal(t, uint32(2), second.Seq)
	assert.Equal(t, []float32{0.3, 0.4}, second.Magnitudes)

	p.Stop()
	p.Stop()

	// Nothing more arrives once stopped.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err = conn.Read(make([]byte, 64))
	assert.Error(t, err)
}

func TestNewPublisherValidates(t *testing.T) {
	_, sender := listen(t)
	_, err := NewPublisher(time.Millisecond, nil, &stubSource{})
	assert.Error(t, err)
	_, err = NewPublisher(time.Millisecond, sender, nil)
	assert.Error(t, err)

	p, err := NewPublisher(0, sender, &stubSource{})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, p.interval)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.Error(t, err)

	b := make([]byte, HeaderSize+3)
	b[13] = 1
	_, err = Decode(b)
	assert.Error(t, err)
}

func TestSenderClosed(t *testing.T) {
	_, sender := listen(t)
	require.NoError(t, sender.Close())
	assert.NoError(t, sender.Close())
	assert.Error(t, sender.Send([]byte{1}))
}
