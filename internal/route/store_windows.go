// SPDX-License-Identifier: MIT
//go:build windows

package route

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
	"golang.org/x/sys/windows"

	"nowplaying/internal/com"
)

// Listen-through properties of a capture endpoint.
var listenFMTID = ole.NewGUID("{24DBB0FC-9311-4B3D-9CF0-18FF155639D4}")

const (
	pidListenTarget  = 0 // VT_LPWSTR, or VT_EMPTY when unset
	pidListenEnabled = 1 // VT_BOOL

	stgmReadWrite = 0x2

	vtEmpty  = 0
	vtBool   = 11
	vtLPWSTR = 31

	variantTrue = 0xFFFF
)

var procPropVariantClear = windows.NewLazySystemDLL("ole32.dll").NewProc("PropVariantClear")

type propertyKey struct {
	fmtid ole.GUID
	pid   uint32
}

// propVariant mirrors the PROPVARIANT layout for the two value kinds used here.
type propVariant struct {
	vt  uint16
	_   [3]uint16
	val uintptr
	_   uintptr
}

// SystemStores opens capture-device property stores through Core Audio.
type SystemStores struct {
	mu      sync.Mutex
	enum    *wca.IMMDeviceEnumerator
	release func()
}

// NewSystemStores initializes COM and creates the device enumerator.
func NewSystemStores() (*SystemStores, error) {
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
		return nil, fmt.Errorf("create device enumerator: %w", err)
	}
	return &SystemStores{enum: enum, release: release}, nil
}

func (s *SystemStores) OpenWritable(deviceID string) (PropertyStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dev *wca.IMMDevice
	if err := s.enum.GetDevice(deviceID, &dev); err != nil {
		return nil, storeError("get device "+deviceID, err)
	}
	defer dev.Release()

	var ps *wca.IPropertyStore
	if err := dev.OpenPropertyStore(stgmReadWrite, &ps); err != nil {
		return nil, storeError("open property store of "+deviceID, err)
	}
	return &systemStore{ps: ps}, nil
}

// storeError marks access-denied failures with ErrPermissionDenied; the
// controller reports everything else as a missing endpoint.
func storeError(op string, err error) error {
	if com.IsAccessDenied(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close releases the enumerator and the COM reference.
func (s *SystemStores) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enum != nil {
		s.enum.Release()
		s.enum = nil
		s.release()
	}
	return nil
}

type systemStore struct {
	mu sync.Mutex
	ps *wca.IPropertyStore
}

func (s *systemStore) get(pid uint32, pv *propVariant) error {
	key := propertyKey{fmtid: *listenFMTID, pid: pid}
	hr, _, _ := syscall.SyscallN(s.ps.VTable().GetValue,
		uintptr(unsafe.Pointer(s.ps)),
		uintptr(unsafe.Pointer(&key)),
		uintptr(unsafe.Pointer(pv)),
	)
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

func (s *systemStore) set(pid uint32, pv *propVariant) error {
	key := propertyKey{fmtid: *listenFMTID, pid: pid}
	hr, _, _ := syscall.SyscallN(s.ps.VTable().SetValue,
		uintptr(unsafe.Pointer(s.ps)),
		uintptr(unsafe.Pointer(&key)),
		uintptr(unsafe.Pointer(pv)),
	)
	if hr != 0 {
		return ole.NewError(hr)
	}
	hr, _, _ = syscall.SyscallN(s.ps.VTable().Commit, uintptr(unsafe.Pointer(s.ps)))
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

func clearVariant(pv *propVariant) {
	procPropVariantClear.Call(uintptr(unsafe.Pointer(pv)))
}

func (s *systemStore) ListenEnabled() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pv propVariant
	if err := s.get(pidListenEnabled, &pv); err != nil {
		return false, err
	}
	defer clearVariant(&pv)
	return pv.vt == vtBool && uint16(pv.val) != 0, nil
}

func (s *systemStore) SetListenEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pv := propVariant{vt: vtBool}
	if enabled {
		pv.val = variantTrue
	}
	return s.set(pidListenEnabled, &pv)
}

func (s *systemStore) ListenTarget() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pv propVariant
	if err := s.get(pidListenTarget, &pv); err != nil {
		return "", err
	}
	defer clearVariant(&pv)
	if pv.vt != vtLPWSTR || pv.val == 0 {
		return "", nil
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(pv.val))), nil
}

// SetListenTarget writes deviceID, or VT_EMPTY when deviceID is empty.
func (s *systemStore) SetListenTarget(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deviceID == "" {
		return s.set(pidListenTarget, &propVariant{vt: vtEmpty})
	}
	p, err := windows.UTF16PtrFromString(deviceID)
	if err != nil {
		return err
	}
	pv := propVariant{vt: vtLPWSTR, val: uintptr(unsafe.Pointer(p))}
	err = s.set(pidListenTarget, &pv)
	runtime.KeepAlive(p)
	return err
}

func (s *systemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ps != nil {
		s.ps.Release()
		s.ps = nil
	}
	return nil
}

var _ StoreOpener = (*SystemStores)(nil)
