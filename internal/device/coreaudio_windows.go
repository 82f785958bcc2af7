// SPDX-License-Identifier: MIT
//go:build windows

package device

import (
	"fmt"
	"sync"

	"github.com/moutend/go-wca/pkg/wca"

	"nowplaying/internal/audio"
	"nowplaying/internal/com"
	"nowplaying/internal/route"
)

// CoreAudioEnumerator lists active MMDevice endpoints. IDs are interface
// paths, the form the per-process policy table stores.
type CoreAudioEnumerator struct {
	mu      sync.Mutex
	enum    *wca.IMMDeviceEnumerator
	release func()
}

// NewCoreAudioEnumerator initializes COM on the calling thread and creates
// the device enumerator.
func NewCoreAudioEnumerator() (*CoreAudioEnumerator, error) {
	release, err := com.Init()
	if err != nil {
		return nil, err
	}
	var enum *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(
		wca.CLSID_MMDeviceEnumerator,
		0,
		wca.CLSCTX_ALL,
		wca.IID_IMMDeviceEnumerator,
		&enum,
	); err != nil {
		release()
		return nil, fmt.Errorf("creating device enumerator: %w", err)
	}
	return &CoreAudioEnumerator{enum: enum, release: release}, nil
}

func dataFlow(dir audio.Direction) uint32 {
	if dir == audio.Capture {
		return wca.ECapture
	}
	return wca.ERender
}

func routeFlow(dir audio.Direction) route.Flow {
	if dir == audio.Capture {
		return route.FlowCapture
	}
	return route.FlowRender
}

// Endpoints implements audio.Enumerator.
func (e *CoreAudioEnumerator) Endpoints(dir audio.Direction) ([]audio.Endpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var coll *wca.IMMDeviceCollection
	if err := e.enum.EnumAudioEndpoints(dataFlow(dir), wca.DEVICE_STATE_ACTIVE, &coll); err != nil {
		return nil, fmt.Errorf("enumerating %s endpoints: %w", dir, err)
	}
	defer coll.Release()

	var count uint32
	if err := coll.GetCount(&count); err != nil {
		return nil, err
	}
	out := make([]audio.Endpoint, 0, count)
	for i := range count {
		var dev *wca.IMMDevice
		if err := coll.Item(i, &dev); err != nil {
			continue
		}
		ep, err := describe(dev, dir)
		dev.Release()
		if err != nil {
			continue
		}
		out = append(out, ep)
	}
	return out, nil
}

// DefaultEndpoint implements audio.Enumerator using the console role.
func (e *CoreAudioEnumerator) DefaultEndpoint(dir audio.Direction) (audio.Endpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var dev *wca.IMMDevice
	if err := e.enum.GetDefaultAudioEndpoint(dataFlow(dir), wca.EConsole, &dev); err != nil {
		return audio.Endpoint{}, fmt.Errorf("default %s endpoint: %w", dir, err)
	}
	defer dev.Release()
	return describe(dev, dir)
}

func describe(dev *wca.IMMDevice, dir audio.Direction) (audio.Endpoint, error) {
	var id string
	if err := dev.GetId(&id); err != nil {
		return audio.Endpoint{}, err
	}
	var ps *wca.IPropertyStore
	if err := dev.OpenPropertyStore(wca.STGM_READ, &ps); err != nil {
		return audio.Endpoint{}, err
	}
	defer ps.Release()

	var pv wca.PROPVARIANT
	if err := ps.GetValue(&wca.PKEY_Device_FriendlyName, &pv); err != nil {
		return audio.Endpoint{}, err
	}
	return audio.Endpoint{
		ID:          route.InterfacePath(id, routeFlow(dir)),
		DisplayName: pv.String(),
		Direction:   dir,
		Channels:    2,
	}, nil
}

// Close releases the enumerator and uninitializes COM.
func (e *CoreAudioEnumerator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enum != nil {
		e.enum.Release()
		e.enum = nil
		e.release()
	}
	return nil
}

var _ audio.Enumerator = (*CoreAudioEnumerator)(nil)
