// SPDX-License-Identifier: MIT
package route

import "testing"

func TestStripDeviceID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"capture path", micIn, "{0.0.1.00000000}.{aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee}"},
		{"render path", cableOut, "{0.0.0.00000000}.{11111111-2222-3333-4444-555555555555}"},
		{"empty", "", ""},
		{"too short", "{0.0.1.00000000}", "{0.0.1.00000000}"},
		{"exactly wrapper length", string(make([]byte, 56)), string(make([]byte, 56))},
		{"one past wrapper", `\\?\SWD#MMDEVAPI#x#{2eef81be-33fa-4506-9776-27ef0e0a63e1}`, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripDeviceID(tt.in); got != tt.want {
				t.Errorf("StripDeviceID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInterfacePathInvertsStrip(t *testing.T) {
	id := "{0.0.1.00000000}.{aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee}"
	for _, flow := range []Flow{FlowRender, FlowCapture} {
		if got := StripDeviceID(InterfacePath(id, flow)); got != id {
			t.Errorf("%s: round trip = %q, want %q", flow, got, id)
		}
	}
	if InterfacePath(id, FlowCapture) != micIn {
		t.Errorf("capture path = %q, want %q", InterfacePath(id, FlowCapture), micIn)
	}
}
