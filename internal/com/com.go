// SPDX-License-Identifier: MIT

// Package com classifies COM HRESULTs and, on Windows, initializes COM and
// the Windows Runtime so that every Init is paired with the matching
// uninitialize call only when it actually took a reference.
package com

import (
	"errors"

	"github.com/go-ole/go-ole"
)

// HRESULTs the audio backends act on.
const (
	SFalse           uint32 = 0x00000001
	RPCEChangedMode  uint32 = 0x80010106
	EAccessDenied    uint32 = 0x80070005
	EFileNotFound    uint32 = 0x80070002
	ENotFound        uint32 = 0x80070490
	AUDCLEDeviceGone uint32 = 0x88890004
)

// Code returns the HRESULT carried by err, if any.
func Code(err error) (uint32, bool) {
	var oleErr *ole.OleError
	if !errors.As(err, &oleErr) {
		return 0, false
	}
	return uint32(oleErr.Code()), true
}

// Usable reports whether an initialization error still leaves the thread in
// a usable apartment: S_FALSE (already initialized, reference taken) or
// RPC_E_CHANGED_MODE (initialized in the other model, no reference taken).
func Usable(err error) bool {
	if err == nil {
		return true
	}
	code, ok := Code(err)
	return ok && (code == SFalse || code == RPCEChangedMode)
}

// Referenced reports whether an initialization call returning err took a
// reference that must be released.
func Referenced(err error) bool {
	if err == nil {
		return true
	}
	code, ok := Code(err)
	return ok && code == SFalse
}

// IsAccessDenied reports whether err is E_ACCESSDENIED.
func IsAccessDenied(err error) bool {
	code, ok := Code(err)
	return ok && code == EAccessDenied
}

// IsNotFound reports whether err says the device or element does not exist.
func IsNotFound(err error) bool {
	code, ok := Code(err)
	if !ok {
		return false
	}
	switch code {
	case ENotFound, EFileNotFound, AUDCLEDeviceGone:
		return true
	}
	return false
}
