// SPDX-License-Identifier: MIT
//go:build !windows

package route

// SystemPolicy is unavailable off Windows; use the memory backend (--dry-run).
type SystemPolicy struct{}

func NewSystemPolicy() (*SystemPolicy, error) { return nil, ErrUnsupported }

func (*SystemPolicy) ProcessEndpoint(uint32, Flow, Role) (EndpointRef, error) {
	return EndpointRef{}, ErrUnsupported
}

func (*SystemPolicy) SetProcessEndpoint(uint32, Flow, Role, EndpointRef) error {
	return ErrUnsupported
}

func (*SystemPolicy) Close() error { return nil }

// SystemStores is unavailable off Windows.
type SystemStores struct{}

func NewSystemStores() (*SystemStores, error) { return nil, ErrUnsupported }

func (*SystemStores) OpenWritable(string) (PropertyStore, error) { return nil, ErrUnsupported }

func (*SystemStores) Close() error { return nil }

var (
	_ Policy      = (*SystemPolicy)(nil)
	_ StoreOpener = (*SystemStores)(nil)
)
