// SPDX-License-Identifier: MIT
//go:build !linux

package media

import "context"

// MPRISFinder requires a D-Bus session bus and is only built on Linux.
type MPRISFinder struct{}

func NewMPRISFinder() (*MPRISFinder, error) { return nil, ErrUnsupported }

func (*MPRISFinder) Close() error { return nil }

func (*MPRISFinder) FindSession(context.Context, string) (Session, error) {
	return nil, ErrUnsupported
}

var _ Finder = (*MPRISFinder)(nil)
