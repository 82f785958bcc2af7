// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "nowplaying/internal/log"
)

// LoggingTransport logs every Nth message at debug level. It is the
// transport used when nothing else is configured.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
	log   *applog.Logger
}

// NewLoggingTransport logs one message in every (minimum 1).
func NewLoggingTransport(every int) *LoggingTransport {
	if every < 1 {
		every = 1
	}
	lt := &LoggingTransport{every: uint64(every), log: applog.Named("transport")}
	lt.log.Infof("using logging transport (every %d messages)", every)
	return lt
}

// Send never fails.
func (lt *LoggingTransport) Send(data any) error {
	if n := lt.count.Add(1); n%lt.every == 0 {
		lt.log.Debugf("#%d %+v", n, data)
	}
	return nil
}

// Count returns the number of messages received.
func (lt *LoggingTransport) Count() uint64 { return lt.count.Load() }

// Close is a no-op.
func (lt *LoggingTransport) Close() error { return nil }

var _ Transport = (*LoggingTransport)(nil)
