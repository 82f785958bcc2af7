// SPDX-License-Identifier: MIT

// Package route overrides a process's persisted default output endpoint and
// toggles microphone listen-through on a capture device, restoring the prior
// OS state when the override ends.
//
// OS access is confined to two narrow boundaries, Policy and StoreOpener.
// The Windows implementations live in policy_windows.go and store_windows.go;
// memory.go provides an in-process implementation for tests and dry runs.
package route

import (
	"errors"
	"fmt"
)

var (
	// ErrEndpointNotFound is returned when a device id is empty or cannot be resolved.
	ErrEndpointNotFound = errors.New("audio endpoint not found")

	// ErrEndpointWriteFailed is returned when the OS rejects a policy or property write.
	ErrEndpointWriteFailed = errors.New("audio endpoint write failed")

	// ErrEndpointReadFailed is returned when the prior OS state cannot be read.
	ErrEndpointReadFailed = errors.New("audio endpoint read failed")

	// ErrPermissionDenied is returned when a device property store cannot be opened for write.
	// Elevated privileges are required; the operation is never retried.
	ErrPermissionDenied = errors.New("permission denied opening device property store (run elevated)")

	// ErrUnsupported is returned by the system backend on platforms without per-process routing.
	ErrUnsupported = errors.New("per-process audio routing is not supported on this platform")
)

// Flow is the data-flow direction of an endpoint, matching EDataFlow.
type Flow int

const (
	FlowRender Flow = iota
	FlowCapture
)

func (f Flow) String() string {
	if f == FlowCapture {
		return "capture"
	}
	return "render"
}

// Role is the OS role context an endpoint is persisted for, matching ERole.
type Role int

const (
	RoleConsole Role = iota
	RoleMultimedia
	RoleCommunications
)

// Roles lists every role an override is applied to, in write order.
var Roles = [...]Role{RoleConsole, RoleMultimedia, RoleCommunications}

func (r Role) String() string {
	switch r {
	case RoleConsole:
		return "console"
	case RoleMultimedia:
		return "multimedia"
	case RoleCommunications:
		return "communications"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// EndpointRef is a persisted endpoint value: either the system default or a
// specific device id. The zero value is the system default.
type EndpointRef struct {
	id string
}

// SystemDefault returns the reference meaning "no per-process override".
func SystemDefault() EndpointRef { return EndpointRef{} }

// Endpoint returns a reference to a specific device. An empty id yields the
// system default, which is how the OS itself reports an unset entry.
func Endpoint(id string) EndpointRef { return EndpointRef{id: id} }

// IsSystemDefault reports whether r carries no explicit device.
func (r EndpointRef) IsSystemDefault() bool { return r.id == "" }

// ID returns the device id, or "" for the system default.
func (r EndpointRef) ID() string { return r.id }

func (r EndpointRef) String() string {
	if r.IsSystemDefault() {
		return "<system default>"
	}
	return r.id
}

// Error describes a failed route operation.
type Error struct {
	Op     string // "begin redirection", "end listen-through", ...
	Role   string // role involved, if any
	Device string // device id involved, if any
	Err    error
}

func (e *Error) Error() string {
	msg := "route: " + e.Op
	if e.Role != "" {
		msg += " (role " + e.Role + ")"
	}
	if e.Device != "" {
		msg += " [" + e.Device + "]"
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Policy reads and writes the OS table of per-process default endpoints.
type Policy interface {
	ProcessEndpoint(pid uint32, flow Flow, role Role) (EndpointRef, error)
	SetProcessEndpoint(pid uint32, flow Flow, role Role, ref EndpointRef) error
}

// PropertyStore exposes the two listen-through properties of a capture device.
// An empty listen target means the property is explicitly unset.
type PropertyStore interface {
	ListenEnabled() (bool, error)
	SetListenEnabled(enabled bool) error
	ListenTarget() (string, error)
	SetListenTarget(deviceID string) error
	Close() error
}

// StoreOpener opens a device's property store with write access. deviceID is
// the short endpoint id (see StripDeviceID).
type StoreOpener interface {
	OpenWritable(deviceID string) (PropertyStore, error)
}
