// SPDX-License-Identifier: MIT
//go:build windows

package process

import (
	"runtime"
	"unsafe"

	"github.com/mitchellh/go-ps"
	"github.com/moutend/go-wca/pkg/wca"

	"nowplaying/internal/com"
)

// platformCandidates returns the processes owning an audio session on any
// active render endpoint, in endpoint then session order.
func platformCandidates() ([]ps.Process, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	release, err := com.Init()
	if err != nil {
		return nil, err
	}
	defer release()

	var enum *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(
		wca.CLSID_MMDeviceEnumerator,
		0,
		wca.CLSCTX_ALL,
		wca.IID_IMMDeviceEnumerator,
		&enum,
	); err != nil {
		return nil, err
	}
	defer enum.Release()

	var coll *wca.IMMDeviceCollection
	if err := enum.EnumAudioEndpoints(wca.ERender, wca.DEVICE_STATE_ACTIVE, &coll); err != nil {
		return nil, err
	}
	defer coll.Release()

	var count uint32
	if err := coll.GetCount(&count); err != nil {
		return nil, err
	}

	seen := make(map[uint32]bool)
	var out []ps.Process
	for i := range count {
		var endpoint *wca.IMMDevice
		if err := coll.Item(i, &endpoint); err != nil {
			continue
		}
		for _, pid := range sessionPIDs(endpoint) {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			if p, err := ps.FindProcess(int(pid)); err == nil && p != nil {
				out = append(out, p)
			}
		}
		endpoint.Release()
	}
	return out, nil
}

func sessionPIDs(endpoint *wca.IMMDevice) []uint32 {
	var mgr *wca.IAudioSessionManager2
	if err := endpoint.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &mgr); err != nil {
		return nil
	}
	defer mgr.Release()

	var sessions *wca.IAudioSessionEnumerator
	if err := mgr.GetSessionEnumerator(&sessions); err != nil {
		return nil
	}
	defer sessions.Release()

	var n int
	if err := sessions.GetCount(&n); err != nil {
		return nil
	}
	var pids []uint32
	for i := range n {
		var ctl *wca.IAudioSessionControl
		if err := sessions.GetSession(i, &ctl); err != nil {
			continue
		}
		dispatch, err := ctl.QueryInterface(wca.IID_IAudioSessionControl2)
		ctl.Release()
		if err != nil {
			continue
		}
		ctl2 := (*wca.IAudioSessionControl2)(unsafe.Pointer(dispatch))
		var pid uint32
		if err := ctl2.GetProcessId(&pid); err == nil && pid != 0 {
			pids = append(pids, pid)
		}
		ctl2.Release()
	}
	return pids
}
