// SPDX-License-Identifier: MIT

/*
Package audio is the device-independent half of the audio path:
  - endpoint lookup by display-name fragment (Directory)
  - the capture boundary (CaptureBuffer, CaptureSource)
  - sinks that ride along the capture callback (Gate, Recorder)

Concrete enumerators and capture streams live in internal/device.
*/
package audio

import (
	"errors"
	"fmt"
	"strings"

	applog "nowplaying/internal/log"
)

// ErrEndpointNotFound is returned when no endpoint matches a name fragment.
var ErrEndpointNotFound = errors.New("audio endpoint not found")

// Direction is the data-flow role of an endpoint.
type Direction int

const (
	Render Direction = iota
	Capture
)

func (d Direction) String() string {
	if d == Capture {
		return "capture"
	}
	return "render"
}

// Other returns the opposite direction.
func (d Direction) Other() Direction {
	if d == Capture {
		return Render
	}
	return Capture
}

// Endpoint identifies a physical or virtual audio device.
type Endpoint struct {
	ID                string
	DisplayName       string
	Direction         Direction
	DefaultSampleRate float64
	Channels          int
}

// Enumerator lists the endpoints of one direction in OS enumeration order.
type Enumerator interface {
	Endpoints(dir Direction) ([]Endpoint, error)
	DefaultEndpoint(dir Direction) (Endpoint, error)
}

// Directory resolves endpoints by name. Nothing is cached; every lookup
// enumerates afresh.
type Directory struct {
	enum Enumerator
	log  *applog.Logger
}

// NewDirectory returns a Directory over enum.
func NewDirectory(enum Enumerator) *Directory {
	return &Directory{enum: enum, log: applog.Named("directory")}
}

// ResolveID returns the id of the first endpoint whose display name contains
// fragment (case-insensitive), searching hint's direction before the other
// one. Several matches are logged as a configuration hazard; the first still
// wins. Enumeration errors count as "not found".
func (d *Directory) ResolveID(fragment string, hint Direction) (string, bool) {
	ep, ok := d.lookup(fragment, hint)
	return ep.ID, ok
}

// Resolve is ResolveID returning the whole endpoint, with ErrEndpointNotFound
// naming the fragment when nothing matches.
func (d *Directory) Resolve(fragment string, hint Direction) (Endpoint, error) {
	ep, ok := d.lookup(fragment, hint)
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: no %s or %s device name contains %q",
			ErrEndpointNotFound, hint, hint.Other(), fragment)
	}
	return ep, nil
}

func (d *Directory) lookup(fragment string, hint Direction) (Endpoint, bool) {
	if fragment == "" {
		return Endpoint{}, false
	}
	needle := strings.ToLower(fragment)
	for _, dir := range [...]Direction{hint, hint.Other()} {
		eps, err := d.enum.Endpoints(dir)
		if err != nil {
			d.log.Warnf("enumerating %s endpoints: %v", dir, err)
			continue
		}
		var matches []Endpoint
		for _, ep := range eps {
			if strings.Contains(strings.ToLower(ep.DisplayName), needle) {
				matches = append(matches, ep)
			}
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			names := make([]string, len(matches))
			for i, m := range matches {
				names[i] = m.DisplayName
			}
			d.log.Warnf("fragment %q matches %d %s devices %q; using %q",
				fragment, len(matches), dir, names, matches[0].DisplayName)
		}
		return matches[0], true
	}
	return Endpoint{}, false
}

// ResolveName returns the display name of the endpoint with the given id,
// searching render devices before capture devices.
func (d *Directory) ResolveName(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	for _, dir := range [...]Direction{Render, Capture} {
		eps, err := d.enum.Endpoints(dir)
		if err != nil {
			d.log.Warnf("enumerating %s endpoints: %v", dir, err)
			continue
		}
		for _, ep := range eps {
			if ep.ID == id {
				return ep.DisplayName, true
			}
		}
	}
	return "", false
}

// Default returns the system default endpoint for dir.
func (d *Directory) Default(dir Direction) (Endpoint, error) {
	ep, err := d.enum.DefaultEndpoint(dir)
	if err != nil {
		return Endpoint{}, fmt.Errorf("default %s endpoint: %w", dir, err)
	}
	return ep, nil
}

// All returns every endpoint, render devices first.
func (d *Directory) All() ([]Endpoint, error) {
	var all []Endpoint
	for _, dir := range [...]Direction{Render, Capture} {
		eps, err := d.enum.Endpoints(dir)
		if err != nil {
			return nil, fmt.Errorf("enumerating %s endpoints: %w", dir, err)
		}
		all = append(all, eps...)
	}
	return all, nil
}
