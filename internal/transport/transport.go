// SPDX-License-Identifier: MIT

// Package transport delivers presentation frames to consumers outside the
// process.
package transport

import "errors"

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending presentation data.
// Implementations must be safe for concurrent use and must not block the
// caller on slow consumers.
type Transport interface {
	Send(data any) error
	Close() error
}

// Multi sends to every transport in order and joins the errors.
type Multi []Transport

func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
