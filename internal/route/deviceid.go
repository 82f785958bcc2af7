// SPDX-License-Identifier: MIT
package route

// Device interface paths handed out by the endpoint enumerators look like
//
//	\\?\SWD#MMDEVAPI#{0.0.1.00000000}.{guid}#{2eef81be-33fa-4506-9776-27ef0e0a63e1}
//
// while the property store wants the bare endpoint id in the middle.
const (
	deviceIDPrefixLen = len(`\\?\SWD#MMDEVAPI#`)
	deviceIDSuffixLen = len(`#{2eef81be-33fa-4506-9776-27ef0e0a63e1}`)
)

// Interface class GUIDs used when building interface paths.
const (
	RenderInterfaceGUID  = "{e6327cad-dcec-4949-ae8a-991e976a79d2}"
	CaptureInterfaceGUID = "{2eef81be-33fa-4506-9776-27ef0e0a63e1}"
)

// StripDeviceID removes the fixed interface-path wrapper from id. Strings too
// short to carry both prefix and suffix are returned unchanged.
func StripDeviceID(id string) string {
	if len(id) <= deviceIDPrefixLen+deviceIDSuffixLen {
		return id
	}
	return id[deviceIDPrefixLen : len(id)-deviceIDSuffixLen]
}

// InterfacePath wraps a bare endpoint id into the interface-path form used by
// the policy table. It is the inverse of StripDeviceID.
func InterfacePath(endpointID string, flow Flow) string {
	guid := RenderInterfaceGUID
	if flow == FlowCapture {
		guid = CaptureInterfaceGUID
	}
	return `\\?\SWD#MMDEVAPI#` + endpointID + "#" + guid
}
