// SPDX-License-Identifier: MIT

// Package udp streams visualizer bar magnitudes as compact binary datagrams
// for external renderers.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	applog "nowplaying/internal/log"
	"nowplaying/internal/visualizer"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 16 * time.Millisecond

// HeaderSize is the size of the fixed packet header.
const HeaderSize = 4 + 8 + 2

// GeometrySource is satisfied by *visualizer.Visualizer.
type GeometrySource interface {
	Latest(dst *visualizer.Geometry) bool
}

/*
Packet layout, big-endian:

	| seq uint32 | unix nanos int64 | count uint16 | count x float32 |

The magnitudes are the left bars in chunk order followed by the right bars.
*/

// Publisher sends the newest geometry on every tick. Ticks with no new
// geometry send nothing.
type Publisher struct {
	sender   *Sender
	source   GeometrySource
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex // guards done
	done chan struct{}
	wg   sync.WaitGroup

	seq     uint32
	lastGeo uint64
	geo     visualizer.Geometry
	packet  bytes.Buffer
	mags    []float32
	log     *applog.Logger
}

// NewPublisher returns a stopped publisher.
func NewPublisher(interval time.Duration, sender *Sender, source GeometrySource) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: nil sender")
	}
	if source == nil {
		return nil, errors.New("udp publisher: nil geometry source")
	}
	p := &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		now:      time.Now,
		log:      applog.Named("udp"),
	}
	if p.interval <= 0 {
		p.log.Warnf("invalid interval %s, using %s", interval, DefaultInterval)
		p.interval = DefaultInterval
	}
	return p, nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	done := make(chan struct{})
	p.done = done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
	p.log.Debugf("publishing every %s", p.interval)
}

// Stop signals the goroutine and waits for it. Safe to call repeatedly.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// publish builds and sends one packet if the source has a new frame.
func (p *Publisher) publish() {
	if !p.source.Latest(&p.geo) || p.geo.Seq == p.lastGeo {
		return
	}
	p.lastGeo = p.geo.Seq
	p.seq++
	if err := p.sender.Send(p.encode(p.seq, p.now())); err != nil {
		p.log.Warnf("%v", err)
	}
}

func (p *Publisher) encode(seq uint32, at time.Time) []byte {
	p.mags = p.mags[:0]
	for _, b := range p.geo.Left {
		p.mags = append(p.mags, float32(b.Magnitude))
	}
	for _, b := range p.geo.Right {
		p.mags = append(p.mags, float32(b.Magnitude))
	}
	if len(p.mags) > math.MaxUint16 {
		p.mags = p.mags[:math.MaxUint16]
	}

	p.packet.Reset()
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], seq)
	binary.BigEndian.PutUint64(hdr[4:12], uint64(at.UnixNano()))
	binary.BigEndian.PutUint16(hdr[12:14], uint16(len(p.mags)))
	p.packet.Write(hdr[:])
	var word [4]byte
	for _, m := range p.mags {
		binary.BigEndian.PutUint32(word[:], math.Float32bits(m))
		p.packet.Write(word[:])
	}
	return p.packet.Bytes()
}

// Packet is a decoded datagram.
type Packet struct {
	Seq        uint32
	Timestamp  time.Time
	Magnitudes []float32
}

// Decode parses one datagram.
func Decode(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, errors.New("udp packet: short header")
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) != HeaderSize+4*n {
		return Packet{}, errors.New("udp packet: length does not match count")
	}
	pkt := Packet{
		Seq:        binary.BigEndian.Uint32(b[0:4]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
		Magnitudes: make([]float32, n),
	}
	for i := range pkt.Magnitudes {
		off := HeaderSize + 4*i
		pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	return pkt, nil
}
