// SPDX-License-Identifier: MIT
//go:build !windows

package device

import (
	"errors"

	"nowplaying/internal/audio"
)

// CoreAudioEnumerator is only available on Windows.
type CoreAudioEnumerator struct{}

func NewCoreAudioEnumerator() (*CoreAudioEnumerator, error) {
	return nil, errors.ErrUnsupported
}

func (*CoreAudioEnumerator) Endpoints(audio.Direction) ([]audio.Endpoint, error) {
	return nil, errors.ErrUnsupported
}

func (*CoreAudioEnumerator) DefaultEndpoint(audio.Direction) (audio.Endpoint, error) {
	return audio.Endpoint{}, errors.ErrUnsupported
}

func (*CoreAudioEnumerator) Close() error { return nil }

var _ audio.Enumerator = (*CoreAudioEnumerator)(nil)
