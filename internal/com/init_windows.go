// SPDX-License-Identifier: MIT
//go:build windows

package com

import (
	"fmt"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

var procRoUninitialize = windows.NewLazySystemDLL("combase.dll").NewProc("RoUninitialize")

// Init joins the calling thread to the multithreaded apartment. The returned
// release is a no-op when the thread was already in the single-threaded
// apartment, since no reference was taken then.
func Init() (release func(), err error) {
	err = ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED)
	if !Usable(err) {
		return nil, fmt.Errorf("CoInitializeEx: %w", err)
	}
	if !Referenced(err) {
		return func() {}, nil
	}
	return ole.CoUninitialize, nil
}

// InitRuntime initializes the Windows Runtime in the multithreaded apartment,
// pairing it with RoUninitialize.
func InitRuntime() (release func(), err error) {
	err = ole.RoInitialize(1)
	if !Usable(err) {
		return nil, fmt.Errorf("RoInitialize: %w", err)
	}
	if !Referenced(err) {
		return func() {}, nil
	}
	return func() { procRoUninitialize.Call() }, nil
}
