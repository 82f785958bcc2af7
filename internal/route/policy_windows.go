// SPDX-License-Identifier: MIT
//go:build windows

package route

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"nowplaying/internal/com"
)

const audioPolicyConfigClass = "Windows.Media.Internal.AudioPolicyConfig"

// The factory interface changed IID in build 21390; the slot layout did not.
var (
	iidAudioPolicyConfig       = ole.NewGUID("{ab3d4648-e242-459f-b02f-541c70306324}")
	iidAudioPolicyConfigLegacy = ole.NewGUID("{2a59116d-6c4f-45e0-a74f-707e3fef9258}")
)

const newPolicyIIDBuild = 21390

// vtable slots on the activation factory.
const (
	slotSetPersistedDefaultAudioEndpoint = 25
	slotGetPersistedDefaultAudioEndpoint = 26
)

// SystemPolicy is the Windows per-process endpoint table, reached through the
// undocumented AudioPolicyConfig activation factory.
type SystemPolicy struct {
	mu      sync.Mutex
	factory *ole.IInspectable
	vtbl    *[slotGetPersistedDefaultAudioEndpoint + 1]uintptr
	release func()
}

// NewSystemPolicy initializes the Windows Runtime and acquires the policy factory.
func NewSystemPolicy() (*SystemPolicy, error) {
	release, err := com.InitRuntime()
	if err != nil {
		return nil, err
	}

	iid := iidAudioPolicyConfigLegacy
	if v := windows.RtlGetVersion(); v.MajorVersion > 10 || (v.MajorVersion == 10 && v.BuildNumber >= newPolicyIIDBuild) {
		iid = iidAudioPolicyConfig
	}

	factory, err := ole.RoGetActivationFactory(audioPolicyConfigClass, iid)
	if err != nil {
		release()
		return nil, fmt.Errorf("activation factory %s: %w", audioPolicyConfigClass, err)
	}

	return &SystemPolicy{
		factory: factory,
		release: release,
		vtbl:    *(**[slotGetPersistedDefaultAudioEndpoint + 1]uintptr)(unsafe.Pointer(factory)),
	}, nil
}

func (p *SystemPolicy) ProcessEndpoint(pid uint32, flow Flow, role Role) (EndpointRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var h ole.HString
	hr, _, _ := syscall.SyscallN(p.vtbl[slotGetPersistedDefaultAudioEndpoint],
		uintptr(unsafe.Pointer(p.factory)),
		uintptr(pid),
		uintptr(flow),
		uintptr(role),
		uintptr(unsafe.Pointer(&h)),
	)
	if hr != 0 {
		return EndpointRef{}, ole.NewError(hr)
	}
	if h == 0 {
		return SystemDefault(), nil
	}
	id := h.String()
	_ = ole.DeleteHString(h)
	return Endpoint(id), nil
}

// SetProcessEndpoint writes ref for pid. The system default is written as a
// null string, which is how the table encodes "no override".
func (p *SystemPolicy) SetProcessEndpoint(pid uint32, flow Flow, role Role, ref EndpointRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var h ole.HString
	if !ref.IsSystemDefault() {
		var err error
		if h, err = ole.NewHString(ref.ID()); err != nil {
			return err
		}
		defer ole.DeleteHString(h)
	}

	hr, _, _ := syscall.SyscallN(p.vtbl[slotSetPersistedDefaultAudioEndpoint],
		uintptr(unsafe.Pointer(p.factory)),
		uintptr(pid),
		uintptr(flow),
		uintptr(role),
		uintptr(h),
	)
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

// Close releases the factory and the runtime reference taken by NewSystemPolicy.
func (p *SystemPolicy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.factory != nil {
		p.factory.Release()
		p.factory = nil
		p.release()
	}
	return nil
}

var _ Policy = (*SystemPolicy)(nil)
