// SPDX-License-Identifier: MIT
//go:build !windows

package process

import "github.com/mitchellh/go-ps"

func platformCandidates() ([]ps.Process, error) {
	return ps.Processes()
}
