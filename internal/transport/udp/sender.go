// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"net"
	"sync"

	applog "nowplaying/internal/log"
	"nowplaying/internal/transport"
)

// Sender writes datagrams to one connected peer.
type Sender struct {
	mu   sync.Mutex // guards conn
	conn *net.UDPConn
	log  *applog.Logger
}

// NewSender dials target, given as "host:port".
func NewSender(target string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolving udp target %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing udp target %q: %w", target, err)
	}
	s := &Sender{conn: conn, log: applog.Named("udp")}
	s.log.Infof("sending to %s", conn.RemoteAddr())
	return s, nil
}

// Send writes one datagram.
func (s *Sender) Send(packet []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return transport.ErrClosed
	}
	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("writing udp packet: %w", err)
	}
	return nil
}

// Close releases the socket. Later calls are no-ops.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
